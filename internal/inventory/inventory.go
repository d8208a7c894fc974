// Package inventory turns a structured product search into a filtered store
// query and renders matches for the model to narrate.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
)

var tracer = checkoutlyotel.Tracer("github.com/aitsambajwa-iss/Checkoutly/internal/inventory")

// MaxResults caps every search. It is also the default limit.
const MaxResults = 5

// DefaultCurrency is reported for products stored without a currency.
const DefaultCurrency = "USD"

// Product is one catalogue row.
type Product struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Price       decimal.Decimal `json:"price" yaml:"price"`
	Currency    string          `json:"currency" yaml:"currency"`
	Sizes       []string        `json:"sizes" yaml:"sizes"`
	Colors      []string        `json:"colors" yaml:"colors"`
}

// Query is a structured search. Zero fields do not filter.
type Query struct {
	Text     string
	Size     string
	Color    string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Limit    int
}

// Store searches the catalogue.
type Store interface {
	Search(ctx context.Context, q Query) ([]Product, error)
}

// Keywords splits free text into lower-cased, crudely singularized search
// terms. Terms shorter than three characters after stripping are dropped.
func Keywords(text string) []string {
	var out []string
	for _, word := range strings.Fields(text) {
		word = strings.ToLower(word)
		switch {
		case strings.HasSuffix(word, "es"):
			word = strings.TrimSuffix(word, "es")
		case strings.HasSuffix(word, "s"):
			word = strings.TrimSuffix(word, "s")
		}
		if len(word) >= 3 {
			out = append(out, word)
		}
	}
	return out
}

// Terms returns the substring terms every match must contain. When no
// keyword survives Keywords the raw text is the single term.
func (q Query) Terms() []string {
	if strings.TrimSpace(q.Text) == "" {
		return nil
	}
	if kw := Keywords(q.Text); len(kw) > 0 {
		return kw
	}
	return []string{q.Text}
}

// EffectiveLimit clamps Limit to 1..MaxResults.
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 || q.Limit > MaxResults {
		return MaxResults
	}
	return q.Limit
}

type summary struct {
	Name            string   `json:"name"`
	Price           float64  `json:"price"`
	Currency        string   `json:"currency"`
	Description     string   `json:"description"`
	AvailableSizes  []string `json:"available_sizes"`
	AvailableColors []string `json:"available_colors"`
}

// Summarize renders products as the compact JSON array handed to the model.
func Summarize(products []Product) (string, error) {
	out := make([]summary, 0, len(products))
	for _, p := range products {
		currency := p.Currency
		if currency == "" {
			currency = DefaultCurrency
		}
		out = append(out, summary{
			Name:            p.Name,
			Price:           p.Price.InexactFloat64(),
			Currency:        currency,
			Description:     p.Description,
			AvailableSizes:  p.Sizes,
			AvailableColors: p.Colors,
		})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encoding products: %w", err)
	}
	return string(data), nil
}
