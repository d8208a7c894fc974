package postgrest

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/aitsambajwa-iss/Checkoutly/internal/inventory"
)

// ProductFilter renders a query as PostgREST horizontal filters: one
// or(name.ilike,description.ilike) group per term, ANDed together.
func ProductFilter(q inventory.Query) url.Values {
	v := url.Values{}
	v.Set("select", "*")

	terms := q.Terms()
	switch {
	case len(inventory.Keywords(q.Text)) > 0:
		groups := make([]string, 0, len(terms))
		for _, t := range terms {
			groups = append(groups, fmt.Sprintf("or(name.ilike.*%s*,description.ilike.*%s*)", t, t))
		}
		v.Set("and", "("+strings.Join(groups, ",")+")")
	case len(terms) == 1:
		v.Set("or", fmt.Sprintf("(name.ilike.*%s*,description.ilike.*%s*)", terms[0], terms[0]))
	}

	if q.Size != "" {
		v.Add("sizes", "cs.{"+q.Size+"}")
	}
	if q.Color != "" {
		v.Add("colors", "cs.{"+q.Color+"}")
	}
	if q.MinPrice != nil {
		v.Add("price", "gte."+q.MinPrice.String())
	}
	if q.MaxPrice != nil {
		v.Add("price", "lte."+q.MaxPrice.String())
	}
	v.Set("limit", strconv.Itoa(q.EffectiveLimit()))
	return v
}
