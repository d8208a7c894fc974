package workflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
)

type request struct {
	path    string
	chatID  string
	apiKey  string
	payload map[string]any
}

func newBackend(t *testing.T, status int, body string) (*httptest.Server, *request) {
	t.Helper()
	got := &request{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.chatID = r.Header.Get("X-Chat-ID")
		got.apiKey = r.Header.Get("X-API-Key")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got.payload)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestClient_CallPostsToWebhook(t *testing.T) {
	srv, got := newBackend(t, http.StatusOK, `{"response":"Your order ORD-1 has shipped."}`)
	c := NewClient(Config{BaseURL: srv.URL + "/"})

	reply := c.Call(context.Background(), "order_status", "chat_1", map[string]any{"order_id": "ORD-1"})
	require.NoError(t, reply.Err)
	assert.Equal(t, "Your order ORD-1 has shipped.", reply.Text)
	assert.Equal(t, http.StatusOK, reply.Status)
	assert.Equal(t, "/webhook/order-status", got.path)
	assert.Equal(t, "chat_1", got.chatID)
	assert.Empty(t, got.apiKey)
	assert.Equal(t, "ORD-1", got.payload["order_id"])
}

func TestClient_CallSpanCarriesToolName(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	srv, _ := newBackend(t, http.StatusOK, `ok`)
	c := NewClient(Config{BaseURL: srv.URL})
	c.Call(context.Background(), "product_lookup", "chat_1", map[string]any{})

	var found bool
	for _, s := range rec.Ended() {
		if s.Name() != "workflow.call" {
			continue
		}
		for _, kv := range s.Attributes() {
			if kv.Key == checkoutlyotel.ToolName {
				assert.Equal(t, "product_lookup", kv.Value.AsString())
				found = true
			}
		}
	}
	assert.True(t, found, "workflow.call span with tool name")
}

func TestClient_WebhookPaths(t *testing.T) {
	srv, got := newBackend(t, http.StatusOK, `ok`)
	c := NewClient(Config{BaseURL: srv.URL})

	for tool, path := range map[string]string{
		"product_lookup":    "/webhook/product-lookup",
		"place_cart_order":  "/webhook/place-order",
		"process_return":    "/webhook/process-return",
		"get_customer_info": "/webhook/get-customer-info",
		"submit_review":     "/webhook/submit-reviews",
	} {
		c.Call(context.Background(), tool, "chat_1", map[string]any{})
		assert.Equal(t, path, got.path, tool)
	}
}

func TestClient_PaymentUsesOverrideAndAPIKey(t *testing.T) {
	srv, got := newBackend(t, http.StatusOK, `{"status":"paid"}`)
	c := NewClient(Config{
		BaseURL:       "http://unused.invalid",
		PaymentURL:    srv.URL + "/pay",
		PaymentAPIKey: "secret-key",
	})

	reply := c.Call(context.Background(), "process_payment", "chat_9", map[string]any{"amount": 10})
	require.NoError(t, reply.Err)
	assert.Equal(t, `{"status":"paid"}`, reply.Text)
	assert.Equal(t, "/pay", got.path)
	assert.Equal(t, "secret-key", got.apiKey)
}

func TestClient_UnknownTool(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost"})
	reply := c.Call(context.Background(), "teleport", "chat_1", nil)
	assert.Error(t, reply.Err)
	assert.Equal(t, "Error: Unknown tool teleport", reply.Text)
	assert.False(t, c.Handles("teleport"))
	assert.True(t, c.Handles("order_status"))
}

func TestNewClient_NoBaseURLLeavesToolsUnconfigured(t *testing.T) {
	c := NewClient(Config{PaymentURL: "https://pay.example.com/hook"})
	assert.False(t, c.Handles("order_status"))
	assert.True(t, c.Handles("process_payment"))
}

func TestClient_ErrorStatus(t *testing.T) {
	srv, _ := newBackend(t, http.StatusNotFound, "no such order")
	c := NewClient(Config{BaseURL: srv.URL})

	reply := c.Call(context.Background(), "order_status", "chat_1", map[string]any{})
	assert.Error(t, reply.Err)
	assert.Equal(t, http.StatusNotFound, reply.Status)
	assert.Equal(t, "Error: Tool order_status returned status 404 - no such order", reply.Text)
}

func TestClient_NetworkError(t *testing.T) {
	srv, _ := newBackend(t, http.StatusOK, "")
	url := srv.URL
	srv.Close()
	c := NewClient(Config{BaseURL: url, Timeout: time.Second})

	reply := c.Call(context.Background(), "order_status", "chat_1", map[string]any{})
	assert.Error(t, reply.Err)
	assert.Contains(t, reply.Text, "Network error calling order_status: ")
}

func TestClient_BreakerOpensAfterServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := NewClient(Config{BaseURL: srv.URL, FailureThreshold: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		reply := c.Call(context.Background(), "order_status", "chat_1", map[string]any{})
		assert.Contains(t, reply.Text, "returned status 502")
	}
	reply := c.Call(context.Background(), "order_status", "chat_1", map[string]any{})
	assert.Equal(t, "Network error calling order_status: circuit breaker is open", reply.Text)
	assert.Equal(t, int32(2), hits.Load())

	// Breakers are per endpoint.
	reply = c.Call(context.Background(), "process_return", "chat_1", map[string]any{})
	assert.Contains(t, reply.Text, "returned status 502")
}

func TestClient_NormalizeBody(t *testing.T) {
	c := NewClient(Config{})
	tests := []struct {
		name string
		body string
		want string
	}{
		{"response field", `{"response":"Done."}`, "Done."},
		{"empty response field", `{"response":"","ok":true}`, `{"response":"","ok":true}`},
		{"other json compacted", "{\n  \"status\": \"shipped\",\n  \"eta\": 3\n}", `{"status":"shipped","eta":3}`},
		{"array", `[1, 2]`, `[1,2]`},
		{"plain text", "  Thanks for your review!  ", "Thanks for your review!"},
		{"html stripped", "<p>Order <b>ORD-7</b> &amp; more</p>", "Order ORD-7 & more"},
		{"empty", "", "No response from order_status"},
		{"whitespace", "   \n", "No response from order_status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.NormalizeBody("order_status", tt.body))
		})
	}
}
