// Package postgrest talks to a hosted PostgREST endpoint for the token
// vault, the audit log and the product catalogue.
package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aitsambajwa-iss/Checkoutly/internal/audit"
	"github.com/aitsambajwa-iss/Checkoutly/internal/inventory"
	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
	"github.com/aitsambajwa-iss/Checkoutly/internal/vault"
)

var tracer = checkoutlyotel.Tracer("github.com/aitsambajwa-iss/Checkoutly/internal/postgrest")

// Table paths under the REST root.
const (
	tokensPath   = "/rest/v1/secure_tokens"
	auditPath    = "/rest/v1/llm_audit_logs"
	productsPath = "/rest/v1/products"
)

// ErrNotConfigured is returned when the client has no base URL.
var ErrNotConfigured = errors.New("postgrest client is not configured")

// Client is a thin resty wrapper. It satisfies vault.Writer, audit.Sink and
// inventory.Store.
type Client struct {
	baseURL string
	http    *resty.Client
}

// NewClient returns a client for baseURL authenticated with key. A nil client
// is returned for an empty baseURL.
func NewClient(baseURL, key string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetHeader("apikey", key).
		SetAuthToken(key).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &Client{baseURL: baseURL, http: rc}
}

// IsEnabled reports whether the client can be used.
func (c *Client) IsEnabled() bool {
	return c != nil && c.baseURL != ""
}

type tokenRow struct {
	Token     string    `json:"token"`
	Kind      string    `json:"kind"`
	Value     string    `json:"value"`
	CallID    string    `json:"call_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Put writes a token row. It implements vault.Writer.
func (c *Client) Put(ctx context.Context, e vault.Entry) error {
	ctx, span := tracer.Start(ctx, "postgrest.put_token",
		trace.WithAttributes(attribute.String("vault.kind", e.Kind)))
	defer span.End()

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	err := c.insert(ctx, tokensPath, tokenRow{
		Token:     e.Token,
		Kind:      e.Kind,
		Value:     e.Value,
		CallID:    e.ChatID,
		CreatedAt: createdAt,
	})
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusConflict {
		return vault.ErrTokenExists
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

type auditRow struct {
	CallID           string    `json:"call_id"`
	MessageRole      string    `json:"message_role"`
	OriginalContent  string    `json:"original_content"`
	SanitizedContent string    `json:"sanitized_content"`
	TokensApplied    []string  `json:"tokens_applied"`
	Timestamp        time.Time `json:"timestamp"`
}

// Write inserts one audit row. It implements audit.Sink.
func (c *Client) Write(ctx context.Context, r audit.Record) error {
	ctx, span := tracer.Start(ctx, "postgrest.insert_audit")
	defer span.End()

	tokens := r.TokensApplied
	if tokens == nil {
		tokens = []string{}
	}
	err := c.insert(ctx, auditPath, auditRow{
		CallID:           r.ChatID,
		MessageRole:      r.Role,
		OriginalContent:  r.OriginalContent,
		SanitizedContent: r.SanitizedContent,
		TokensApplied:    tokens,
		Timestamp:        r.Timestamp,
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (c *Client) insert(ctx context.Context, path string, body any) error {
	if !c.IsEnabled() {
		return ErrNotConfigured
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("postgrest request failed: %w", err)
	}
	if resp.IsError() {
		return &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

// StatusError is a non-2xx reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("postgrest error (%d): %s", e.Code, e.Body)
}

type productRow struct {
	ID          json.RawMessage `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Sizes       []string        `json:"sizes"`
	Colors      []string        `json:"colors"`
}

// Search implements inventory.Store against the products table.
func (c *Client) Search(ctx context.Context, q inventory.Query) ([]inventory.Product, error) {
	if !c.IsEnabled() {
		return nil, ErrNotConfigured
	}
	ctx, span := tracer.Start(ctx, "inventory.search",
		trace.WithAttributes(attribute.String("inventory.backend", "postgrest")))
	defer span.End()

	var rows []productRow
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(ProductFilter(q)).
		SetResult(&rows).
		Get(productsPath)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("postgrest request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}

	products := make([]inventory.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, inventory.Product{
			ID:          strings.Trim(string(r.ID), `"`),
			Name:        r.Name,
			Description: r.Description,
			Price:       r.Price,
			Currency:    r.Currency,
			Sizes:       r.Sizes,
			Colors:      r.Colors,
		})
	}
	return products, nil
}
