package tools

import (
	"time"

	"github.com/aitsambajwa-iss/Checkoutly/internal/inventory"
	"github.com/aitsambajwa-iss/Checkoutly/internal/memory"
)

// NewForwarded creates a forwarded tool with the default payload shape.
func NewForwarded(name, description string, args any, backend Backend) *Forwarded {
	return &Forwarded{
		name:        name,
		description: description,
		schema:      schemaFor(args),
		backend:     backend,
		now:         time.Now,
		payload:     defaultPayload,
	}
}

// NewProductLookup creates product_lookup. A successful lookup of a concrete
// product is remembered for the chat.
func NewProductLookup(backend Backend, mem memory.Store) *Forwarded {
	t := NewForwarded("product_lookup",
		"Look up products. Use \"all\" to browse all products, or an exact product name for details.",
		&ProductLookupArgs{}, backend)
	t.payload = productLookupPayloadFor
	t.onSuccess = rememberLookup(mem)
	return t
}

// NewPlaceCartOrder creates place_cart_order, folded into the single-item
// order payload.
func NewPlaceCartOrder(backend Backend) *Forwarded {
	t := NewForwarded("place_cart_order",
		"Place an order for all items currently in the cart. Collect name, email and shipping address first.",
		&PlaceCartOrderArgs{}, backend)
	t.payload = cartOrderPayloadFor
	return t
}

// NewDefaultRegistry registers the full tool set in the order it is offered
// to the model.
func NewDefaultRegistry(store inventory.Store, mem memory.Store, backend Backend) *Registry {
	r := NewRegistry()
	r.Register(NewProductLookup(backend, mem))
	r.Register(NewSearchInventory(store))
	r.Register(NewAddToCart(mem))
	r.Register(ViewCart{})
	r.Register(NewPlaceCartOrder(backend))
	r.Register(NewForwarded("order_status",
		"Check the status of an existing order by its order ID.",
		&OrderStatusArgs{}, backend))
	r.Register(NewForwarded("process_return",
		"Start a return for a delivered order. Ask for the reason if the shopper has not given one.",
		&ProcessReturnArgs{}, backend))
	r.Register(NewForwarded("process_payment",
		"Take payment for an existing order. Never ask the shopper to type a card number into chat.",
		&ProcessPaymentArgs{}, backend))
	r.Register(NewForwarded("submit_review",
		"Submit a product review with a 1 to 5 star rating.",
		&SubmitReviewArgs{}, backend))
	r.Register(NewForwarded("get_customer_info",
		"Look up the shopper's account details and order history by email or order ID.",
		&GetCustomerInfoArgs{}, backend))
	return r
}
