package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aitsambajwa-iss/Checkoutly/internal/memory"
	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
	"github.com/aitsambajwa-iss/Checkoutly/internal/workflow"
)

// Backend is the slice of workflow.Client the forwarded tools use.
type Backend interface {
	Call(ctx context.Context, tool, chatID string, payload any) workflow.Reply
}

// Forwarded is a tool executed by the workflow backend.
type Forwarded struct {
	name        string
	description string
	schema      json.RawMessage
	backend     Backend
	now         func() time.Time
	payload     func(call Call, now time.Time) (any, error)
	onSuccess   func(ctx context.Context, call Call)
}

func (t *Forwarded) Name() string                 { return t.name }
func (t *Forwarded) Description() string          { return t.description }
func (t *Forwarded) InputSchema() json.RawMessage { return t.schema }
func (t *Forwarded) Route() Route                 { return RouteForwarded }

// Payload builds the JSON body posted to the backend.
func (t *Forwarded) Payload(call Call) (any, error) {
	return t.payload(call, t.now().UTC())
}

// Forward posts a prepared payload. Backend failures are narratable text.
func (t *Forwarded) Forward(ctx context.Context, call Call, payload any) (Result, error) {
	reply := t.backend.Call(ctx, t.name, call.ChatID, payload)
	if reply.Err == nil && t.onSuccess != nil {
		t.onSuccess(ctx, call)
	}
	return Result{Kind: Narratable, Content: reply.Text}, nil
}

// Execute is Payload followed by Forward.
func (t *Forwarded) Execute(ctx context.Context, call Call) (Result, error) {
	payload, err := t.Payload(call)
	if err != nil {
		return Result{}, err
	}
	return t.Forward(ctx, call, payload)
}

// chatFields are appended to every forwarded payload.
type chatFields struct {
	ChatID    string `json:"chatId"`
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp"`
}

func newChatFields(chatID string, now time.Time) chatFields {
	return chatFields{ChatID: chatID, SessionID: chatID, Timestamp: now.Format(time.RFC3339Nano)}
}

// defaultPayload is the arguments object plus the chat fields.
func defaultPayload(call Call, now time.Time) (any, error) {
	args := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(call.Arguments))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	cf := newChatFields(call.ChatID, now)
	args["chatId"] = cf.ChatID
	args["sessionId"] = cf.SessionID
	args["timestamp"] = cf.Timestamp
	return args, nil
}

type productLookupPayload struct {
	ProductName string `json:"product_name"`
	Message     string `json:"message"`
	chatFields
}

func productLookupPayloadFor(call Call, now time.Time) (any, error) {
	var args ProductLookupArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	name := args.ProductName
	if name == "" {
		name = memory.AllProducts
	}
	return productLookupPayload{ProductName: name, Message: name, chatFields: newChatFields(call.ChatID, now)}, nil
}

// orderPayload is the single-item order shape the backend already accepts;
// cart checkouts are folded into it.
type orderPayload struct {
	ProductName     string `json:"product_name"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	ShippingAddress string `json:"shipping_address"`
	Quantity        int    `json:"quantity"`
	Size            string `json:"size"`
	Color           string `json:"color"`
	chatFields
	CartItems []CartItem `json:"cart_items"`
	OrderType string     `json:"order_type"`
}

func cartOrderPayloadFor(call Call, now time.Time) (any, error) {
	var args PlaceCartOrderArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	items := args.CartItems
	if items == nil {
		items = []CartItem{}
	}
	return orderPayload{
		ProductName:     "Multiple Items",
		CustomerName:    args.CustomerInfo.Name,
		CustomerEmail:   args.CustomerInfo.Email,
		CustomerPhone:   args.CustomerInfo.Phone,
		ShippingAddress: args.CustomerInfo.Address,
		Quantity:        1,
		chatFields:      newChatFields(call.ChatID, now),
		CartItems:       items,
		OrderType:       "cart_checkout",
	}, nil
}

// rememberLookup records a concrete looked-up product for later "add it".
func rememberLookup(mem memory.Store) func(ctx context.Context, call Call) {
	return func(ctx context.Context, call Call) {
		var args ProductLookupArgs
		if err := json.Unmarshal(call.Arguments, &args); err != nil || memory.Ambiguous(args.ProductName) {
			return
		}
		if err := mem.Set(ctx, call.ChatID, args.ProductName); err != nil {
			log.Warn().Err(err).Func(checkoutlyotel.LogTraceFields(ctx)).Msg("memory_set_failed")
		}
	}
}
