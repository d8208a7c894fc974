// Package workflow posts forwarded tool calls to the workflow backend and
// folds every outcome, including failures, into text the model can narrate.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
)

var tracer = checkoutlyotel.Tracer("github.com/aitsambajwa-iss/Checkoutly/internal/workflow")

// DefaultTimeout bounds one backend call.
const DefaultTimeout = 15 * time.Second

// Forwarded tool names and their webhook paths under the base URL.
var webhookPaths = map[string]string{
	"product_lookup":    "/webhook/product-lookup",
	"place_cart_order":  "/webhook/place-order",
	"order_status":      "/webhook/order-status",
	"process_return":    "/webhook/process-return",
	"get_customer_info": "/webhook/get-customer-info",
	"process_payment":   "/webhook/process-payment",
	"submit_review":     "/webhook/submit-reviews",
}

// Config locates the backend. PaymentURL and ReviewURL override the
// webhook derived from BaseURL for their tools.
type Config struct {
	BaseURL       string
	PaymentURL    string
	PaymentAPIKey string
	ReviewURL     string
	Timeout       time.Duration
	// FailureThreshold is the number of consecutive failures that opens an
	// endpoint's breaker. Zero means 5.
	FailureThreshold uint32
	// OpenTimeout is how long a breaker stays open. Zero means 30s.
	OpenTimeout time.Duration
}

type endpoint struct {
	url     string
	apiKey  string
	breaker *gobreaker.CircuitBreaker
}

// Client calls workflow webhooks.
type Client struct {
	http      *resty.Client
	endpoints map[string]*endpoint
	strip     *bluemonday.Policy
}

// Reply is the normalized outcome of one call. Text is always set; Err is
// non-nil when Text describes a failure.
type Reply struct {
	Text   string
	Status int
	Err    error
}

// errServerStatus marks replies the breaker counts as failures.
var errServerStatus = errors.New("server error status")

// NewClient builds a client with one breaker per endpoint.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		http: resty.New().
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
		endpoints: make(map[string]*endpoint, len(webhookPaths)),
		strip:     bluemonday.StrictPolicy(),
	}
	for tool, path := range webhookPaths {
		ep := &endpoint{url: base + path}
		switch tool {
		case "process_payment":
			if cfg.PaymentURL != "" {
				ep.url = cfg.PaymentURL
			}
			ep.apiKey = cfg.PaymentAPIKey
		case "submit_review":
			if cfg.ReviewURL != "" {
				ep.url = cfg.ReviewURL
			}
		}
		if base == "" && !strings.HasPrefix(ep.url, "http") {
			continue
		}
		ep.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    tool,
			Timeout: openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("tool", name).Str("from", from.String()).Str("to", to.String()).
					Msg("workflow_breaker_state_changed")
			},
		})
		c.endpoints[tool] = ep
	}
	return c
}

// Handles reports whether tool has a configured webhook.
func (c *Client) Handles(tool string) bool {
	_, ok := c.endpoints[tool]
	return ok
}

// Call posts payload to the tool's webhook with the chat id header.
func (c *Client) Call(ctx context.Context, tool, chatID string, payload any) Reply {
	ctx, span := tracer.Start(ctx, "workflow.call",
		trace.WithAttributes(checkoutlyotel.ToolName.String(tool)))
	defer span.End()

	ep, ok := c.endpoints[tool]
	if !ok {
		err := fmt.Errorf("unknown tool %s", tool)
		return Reply{Text: "Error: Unknown tool " + tool, Err: err}
	}

	start := time.Now()
	out, err := ep.breaker.Execute(func() (interface{}, error) {
		req := c.http.R().
			SetContext(ctx).
			SetHeader("X-Chat-ID", chatID).
			SetBody(payload)
		if ep.apiKey != "" {
			req.SetHeader("X-API-Key", ep.apiKey)
		}
		resp, err := req.Post(ep.url)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})

	reply := c.normalize(tool, out, err)
	span.SetAttributes(attribute.Int("http.response.status_code", reply.Status))
	var event *zerolog.Event
	if reply.Err != nil {
		span.RecordError(reply.Err)
		event = log.Warn().Err(reply.Err)
	} else {
		event = log.Info()
	}
	event.Func(checkoutlyotel.LogTraceFields(ctx)).
		Str("tool", tool).
		Int("status", reply.Status).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("workflow_call_completed")
	return reply
}

func (c *Client) normalize(tool string, out interface{}, err error) Reply {
	resp, _ := out.(*resty.Response)
	if err != nil && !errors.Is(err, errServerStatus) {
		return Reply{Text: fmt.Sprintf("Network error calling %s: %s", tool, err.Error()), Err: err}
	}
	if resp == nil {
		return Reply{Text: "No response from " + tool, Err: errors.New("empty response")}
	}

	body := resp.String()
	if resp.IsError() {
		return Reply{
			Text:   fmt.Sprintf("Error: Tool %s returned status %d - %s", tool, resp.StatusCode(), body),
			Status: resp.StatusCode(),
			Err:    fmt.Errorf("status %d", resp.StatusCode()),
		}
	}
	return Reply{Text: c.NormalizeBody(tool, body), Status: resp.StatusCode()}
}

// NormalizeBody turns a successful reply body into narratable text.
func (c *Client) NormalizeBody(tool, body string) string {
	var parsed any
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		if obj, ok := parsed.(map[string]any); ok {
			if s, ok := obj["response"].(string); ok && s != "" {
				return s
			}
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(body)); err == nil {
			return buf.String()
		}
	}
	text := strings.TrimSpace(html.UnescapeString(c.strip.Sanitize(body)))
	if text == "" {
		return "No response from " + tool
	}
	return text
}
