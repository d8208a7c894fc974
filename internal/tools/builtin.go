package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/aitsambajwa-iss/Checkoutly/internal/inventory"
	"github.com/aitsambajwa-iss/Checkoutly/internal/memory"
	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
)

// Fixed replies of the local inventory search.
const (
	NoProductsFound      = "I checked our inventory but couldn't find any products matching those specific criteria. Would you like to see our most popular items instead?"
	InventoryUnavailable = "I'm having trouble checking the inventory right now. Technical error."
)

// Fixed client action messages.
const (
	UnresolvedProductMessage = "Please specify which product you'd like to add to your cart."
	OpenCartMessage          = "Opening your cart..."
)

// SearchInventory answers search_inventory from the local catalogue.
type SearchInventory struct {
	store inventory.Store
}

// NewSearchInventory creates the tool over store.
func NewSearchInventory(store inventory.Store) *SearchInventory {
	return &SearchInventory{store: store}
}

func (t *SearchInventory) Name() string { return "search_inventory" }
func (t *SearchInventory) Description() string {
	return "Search for categories or features (e.g. \"gym shoes\", \"red hiking boots\"). Use this for recommendations or when the shopper describes what they are looking for."
}
func (t *SearchInventory) InputSchema() json.RawMessage { return schemaFor(&SearchInventoryArgs{}) }
func (t *SearchInventory) Route() Route                 { return RouteLocal }

// Execute runs the search. Store failures become the fixed apology text.
func (t *SearchInventory) Execute(ctx context.Context, call Call) (Result, error) {
	var args SearchInventoryArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	q := inventory.Query{Text: args.Query, Size: args.Size, Color: args.Color}
	if args.MinPrice != nil {
		d := decimal.NewFromFloat(*args.MinPrice)
		q.MinPrice = &d
	}
	if args.MaxPrice != nil {
		d := decimal.NewFromFloat(*args.MaxPrice)
		q.MaxPrice = &d
	}

	products, err := t.store.Search(ctx, q)
	if err != nil {
		log.Error().Err(err).Func(checkoutlyotel.LogTraceFields(ctx)).Msg("inventory_search_failed")
		return Result{Kind: Narratable, Content: InventoryUnavailable}, nil
	}
	if len(products) == 0 {
		return Result{Kind: Narratable, Content: NoProductsFound}, nil
	}
	summary, err := inventory.Summarize(products)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: Narratable, Content: summary}, nil
}

// AddToCart synthesizes the add_to_cart client action, resolving vague
// product names from session memory.
type AddToCart struct {
	memory memory.Store
}

// NewAddToCart creates the tool over mem.
func NewAddToCart(mem memory.Store) *AddToCart {
	return &AddToCart{memory: mem}
}

func (t *AddToCart) Name() string { return "add_to_cart" }
func (t *AddToCart) Description() string {
	return "Add a specific product to the shopper's cart. Use when the shopper wants to buy. If size or color are missing, ask first."
}
func (t *AddToCart) InputSchema() json.RawMessage { return schemaFor(&AddToCartArgs{}) }
func (t *AddToCart) Route() Route                 { return RouteClient }

// MaxCartQuantity caps a single add. It matches the quantity schema maximum.
const MaxCartQuantity = 99

// Execute builds the action. An unresolvable product yields an error action,
// never a guess.
func (t *AddToCart) Execute(ctx context.Context, call Call) (Result, error) {
	var args AddToCartArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	name := strings.TrimSpace(args.ProductName)
	if memory.Ambiguous(name) {
		last, err := t.memory.Get(ctx, call.ChatID)
		if err != nil {
			log.Warn().Err(err).Func(checkoutlyotel.LogTraceFields(ctx)).Msg("memory_get_failed")
		}
		if memory.Ambiguous(last) {
			return clientAction(messageAction{Action: "error", Message: UnresolvedProductMessage})
		}
		name = last
	}

	if err := t.memory.Set(ctx, call.ChatID, name); err != nil {
		log.Warn().Err(err).Func(checkoutlyotel.LogTraceFields(ctx)).Msg("memory_set_failed")
	}

	quantity := 1
	if args.Quantity >= 1 {
		quantity = int(math.Round(math.Min(args.Quantity, MaxCartQuantity)))
	}
	msg := "Added " + name
	if args.Size != "" {
		msg += " (Size " + args.Size + ")"
	}
	msg += " to your cart."

	return clientAction(Action{
		Action:      "add_to_cart",
		ProductName: name,
		Quantity:    quantity,
		Size:        args.Size,
		Color:       args.Color,
		Message:     msg,
	})
}

// ViewCart returns the fixed open-cart signal.
type ViewCart struct{}

func (ViewCart) Name() string { return "view_cart" }
func (ViewCart) Description() string {
	return "View current cart contents and total. Use when the shopper asks about their cart."
}
func (ViewCart) InputSchema() json.RawMessage { return schemaFor(&ViewCartArgs{}) }
func (ViewCart) Route() Route                 { return RouteClient }

func (ViewCart) Execute(context.Context, Call) (Result, error) {
	return clientAction(messageAction{Action: "view_cart", Message: OpenCartMessage})
}
