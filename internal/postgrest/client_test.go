package postgrest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitsambajwa-iss/Checkoutly/internal/audit"
	"github.com/aitsambajwa-iss/Checkoutly/internal/inventory"
	"github.com/aitsambajwa-iss/Checkoutly/internal/vault"
)

type captured struct {
	method string
	path   string
	query  string
	header http.Header
	body   map[string]any
}

func newTestServer(t *testing.T, status int, reply string) (*Client, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.header = r.Header.Clone()
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &got.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "service-key", time.Second), got
}

func TestNewClient_EmptyURL(t *testing.T) {
	c := NewClient("", "k", 0)
	assert.Nil(t, c)
	assert.False(t, c.IsEnabled())
	assert.ErrorIs(t, c.Put(context.Background(), vault.Entry{}), ErrNotConfigured)
}

func TestClient_PutToken(t *testing.T) {
	c, got := newTestServer(t, http.StatusCreated, "")
	created := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	err := c.Put(context.Background(), vault.Entry{
		Token: "tok_1", Kind: "phone", Value: "5551234567", ChatID: "chat_1", TurnID: "turn_1", CreatedAt: created,
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/rest/v1/secure_tokens", got.path)
	assert.Equal(t, "service-key", got.header.Get("apikey"))
	assert.Equal(t, "Bearer service-key", got.header.Get("Authorization"))
	assert.Equal(t, "tok_1", got.body["token"])
	assert.Equal(t, "phone", got.body["kind"])
	assert.Equal(t, "5551234567", got.body["value"])
	assert.Equal(t, "chat_1", got.body["call_id"])
	assert.Equal(t, "2026-02-03T04:05:06Z", got.body["created_at"])
}

func TestClient_PutTokenConflict(t *testing.T) {
	c, _ := newTestServer(t, http.StatusConflict, `{"code":"23505"}`)
	err := c.Put(context.Background(), vault.Entry{Token: "tok_1"})
	assert.ErrorIs(t, err, vault.ErrTokenExists)
}

func TestClient_WriteAudit(t *testing.T) {
	c, got := newTestServer(t, http.StatusCreated, "")

	err := c.Write(context.Background(), audit.Record{
		ChatID:           "chat_1",
		Role:             "user",
		OriginalContent:  "call 555 123 4567",
		SanitizedContent: "call [PHONE:tok_1]",
		Timestamp:        time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "/rest/v1/llm_audit_logs", got.path)
	assert.Equal(t, "chat_1", got.body["call_id"])
	assert.Equal(t, "user", got.body["message_role"])
	assert.Equal(t, []any{}, got.body["tokens_applied"])
}

func TestClient_WriteAuditServerError(t *testing.T) {
	c, _ := newTestServer(t, http.StatusInternalServerError, "boom")
	err := c.Write(context.Background(), audit.Record{})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 500, statusErr.Code)
	assert.Equal(t, "boom", statusErr.Body)
}

func TestClient_Search(t *testing.T) {
	c, got := newTestServer(t, http.StatusOK,
		`[{"id":7,"name":"Runner Pro","description":"running shoe","price":129.99,"currency":null,"sizes":["10"],"colors":["Black"]}]`)

	products, err := c.Search(context.Background(), inventory.Query{Text: "shoes", Size: "10"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "7", products[0].ID)
	assert.Equal(t, "Runner Pro", products[0].Name)
	assert.True(t, decimal.RequireFromString("129.99").Equal(products[0].Price))
	assert.Equal(t, []string{"10"}, products[0].Sizes)

	assert.Equal(t, "/rest/v1/products", got.path)
	assert.Contains(t, got.query, "sizes=cs.%7B10%7D")
}

func TestProductFilter(t *testing.T) {
	lo := decimal.RequireFromString("20")
	hi := decimal.RequireFromString("99.5")
	v := ProductFilter(inventory.Query{Text: "swimming suits", Color: "Red", MinPrice: &lo, MaxPrice: &hi})

	assert.Equal(t, "*", v.Get("select"))
	assert.Equal(t, "(or(name.ilike.*swimming*,description.ilike.*swimming*),or(name.ilike.*suit*,description.ilike.*suit*))", v.Get("and"))
	assert.Empty(t, v.Get("or"))
	assert.Equal(t, "cs.{Red}", v.Get("colors"))
	assert.Equal(t, []string{"gte.20", "lte.99.5"}, v["price"])
	assert.Equal(t, "5", v.Get("limit"))
}

func TestProductFilter_ShortQueryUsesRawText(t *testing.T) {
	v := ProductFilter(inventory.Query{Text: "xl"})
	assert.Empty(t, v.Get("and"))
	assert.Equal(t, "(name.ilike.*xl*,description.ilike.*xl*)", v.Get("or"))
}
