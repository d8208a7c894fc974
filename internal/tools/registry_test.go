package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTool is a minimal Tool implementation for testing.
type stubTool struct {
	name string
	desc string
}

func (s *stubTool) Name() string                 { return s.name }
func (s *stubTool) Description() string          { return s.desc }
func (s *stubTool) InputSchema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (s *stubTool) Route() Route                 { return RouteLocal }
func (s *stubTool) Execute(_ context.Context, call Call) (Result, error) {
	return Result{Kind: Narratable, Content: string(call.Arguments)}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "search", desc: "Search tool"})

	got, ok := r.Get("search")
	require.True(t, ok)
	assert.Equal(t, "search", got.Name())
	assert.Equal(t, "Search tool", got.Description())
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistry_ListKeepsOrder(t *testing.T) {
	r := NewRegistry()
	assert.Len(t, r.List(), 0)

	r.Register(&stubTool{name: "tool-b", desc: "B"})
	r.Register(&stubTool{name: "tool-a", desc: "A"})
	r.Register(&stubTool{name: "tool-b", desc: "B2"})

	tools := r.List()
	require.Len(t, tools, 2)
	assert.Equal(t, "tool-b", tools[0].Name())
	assert.Equal(t, "B2", tools[0].Description())
	assert.Equal(t, "tool-a", tools[1].Name())
}

func TestDefaultRegistry_Declarations(t *testing.T) {
	r := NewDefaultRegistry(&fakeStore{}, newMemory(t), &fakeBackend{})

	decls := r.Declarations()
	names := make([]string, 0, len(decls))
	for _, d := range decls {
		names = append(names, d.Name)
		assert.NotEmpty(t, d.Description, d.Name)

		var schema map[string]any
		require.NoError(t, json.Unmarshal(d.Parameters, &schema), d.Name)
		assert.Equal(t, "object", schema["type"], d.Name)
		assert.NotContains(t, schema, "$schema", d.Name)
		assert.NotContains(t, schema, "$ref", d.Name)
	}
	assert.Equal(t, []string{
		"product_lookup", "search_inventory", "add_to_cart", "view_cart", "place_cart_order",
		"order_status", "process_return", "process_payment", "submit_review", "get_customer_info",
	}, names)
}

func TestDefaultRegistry_Routes(t *testing.T) {
	r := NewDefaultRegistry(&fakeStore{}, newMemory(t), &fakeBackend{})

	routes := map[string]Route{}
	for _, tool := range r.List() {
		routes[tool.Name()] = tool.Route()
	}
	assert.Equal(t, RouteLocal, routes["search_inventory"])
	assert.Equal(t, RouteClient, routes["add_to_cart"])
	assert.Equal(t, RouteClient, routes["view_cart"])
	for _, name := range []string{"product_lookup", "place_cart_order", "order_status", "process_return", "process_payment", "submit_review", "get_customer_info"} {
		assert.Equal(t, RouteForwarded, routes[name], name)
	}
}

func TestSchema_RequiredFields(t *testing.T) {
	var schema struct {
		Required   []string                  `json:"required"`
		Properties map[string]map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(schemaFor(&AddToCartArgs{}), &schema))
	assert.Equal(t, []string{"product_name"}, schema.Required)
	assert.Contains(t, schema.Properties, "quantity")
	assert.EqualValues(t, 1, schema.Properties["quantity"]["minimum"])
	assert.EqualValues(t, MaxCartQuantity, schema.Properties["quantity"]["maximum"])
}
