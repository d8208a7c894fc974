package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Argument shapes. The JSON schema offered to the model is reflected from
// these structs; fields without omitempty are required.

type ProductLookupArgs struct {
	ProductName string `json:"product_name" jsonschema_description:"Product name to look up. Use \"all\" to browse everything or an exact name like \"TrailMaster X\"."`
}

type SearchInventoryArgs struct {
	Query    string   `json:"query,omitempty" jsonschema_description:"One or two singular keywords matched against name and description (\"gym\" not \"gym shoes\")."`
	Size     string   `json:"size,omitempty" jsonschema_description:"US size to filter on, e.g. \"10\"."`
	Color    string   `json:"color,omitempty" jsonschema_description:"Color to filter on, e.g. \"Black\"."`
	MinPrice *float64 `json:"min_price,omitempty" jsonschema_description:"Minimum price."`
	MaxPrice *float64 `json:"max_price,omitempty" jsonschema_description:"Maximum price."`
}

type AddToCartArgs struct {
	ProductName string  `json:"product_name" jsonschema_description:"Exact product name from the tool output."`
	Quantity    float64 `json:"quantity,omitempty" jsonschema:"minimum=1,maximum=99" jsonschema_description:"Quantity to add (default 1)."`
	Size        string  `json:"size,omitempty" jsonschema_description:"Size in US sizing."`
	Color       string  `json:"color,omitempty" jsonschema_description:"Color, if the shopper chose one."`
}

type ViewCartArgs struct {
	Action string `json:"action,omitempty" jsonschema_description:"Always \"view\"."`
}

type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address"`
}

type CartItem struct {
	ProductName string   `json:"product_name"`
	Quantity    float64  `json:"quantity,omitempty"`
	Size        string   `json:"size,omitempty"`
	Color       string   `json:"color,omitempty"`
	Price       *float64 `json:"price,omitempty"`
}

type PlaceCartOrderArgs struct {
	CustomerInfo CustomerInfo `json:"customer_info"`
	CartItems    []CartItem   `json:"cart_items,omitempty"`
}

type OrderStatusArgs struct {
	OrderID string `json:"order_id" jsonschema_description:"Order reference, e.g. \"ORD-1042\"."`
	Email   string `json:"email,omitempty"`
}

type ProcessReturnArgs struct {
	OrderID     string `json:"order_id"`
	ProductName string `json:"product_name,omitempty"`
	Reason      string `json:"reason" jsonschema_description:"Why the item is being returned."`
}

type ProcessPaymentArgs struct {
	OrderID       string  `json:"order_id"`
	Amount        float64 `json:"amount" jsonschema:"minimum=0"`
	Currency      string  `json:"currency,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty" jsonschema_description:"Payment method label. Never a card number."`
}

type SubmitReviewArgs struct {
	ProductName  string `json:"product_name"`
	Rating       int    `json:"rating" jsonschema:"minimum=1,maximum=5"`
	Comment      string `json:"comment,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
}

type GetCustomerInfoArgs struct {
	Email   string `json:"email,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

var reflector = &jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
	ExpandedStruct:            true,
}

// schemaFor reflects v into an inline object schema without $schema or $id.
func schemaFor(v any) json.RawMessage {
	s := reflector.Reflect(v)
	s.Version = ""
	s.ID = ""
	data, err := json.Marshal(s)
	if err != nil {
		panic("tools: reflecting schema: " + err.Error())
	}
	return data
}
