package tools

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

//go:embed policy/tool_access.rego
var toolAccessPolicy string

const toolAccessQuery = "data.checkoutly.tools.access.deny"

// PolicyInput is what the access policy sees for one invocation.
type PolicyInput struct {
	Tool    string `json:"tool"`
	Route   Route  `json:"route"`
	Payload string `json:"payload"`
}

// Policy evaluates the embedded tool access rules with OPA.
type Policy struct {
	prepared rego.PreparedEvalQuery
}

// NewPolicy prepares the access policy with the given disabled tools.
func NewPolicy(ctx context.Context, disabledTools []string) (*Policy, error) {
	ctx, span := tracer.Start(ctx, "tools.policy.new")
	defer span.End()

	disabled := make([]interface{}, 0, len(disabledTools))
	for _, t := range disabledTools {
		disabled = append(disabled, t)
	}
	store := inmem.NewFromObject(map[string]interface{}{
		"disabled_tools": disabled,
	})

	r := rego.New(
		rego.Query(toolAccessQuery),
		rego.Module("tool_access.rego", toolAccessPolicy),
		rego.Store(store),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("preparing tool access policy: %w", err)
	}
	return &Policy{prepared: prepared}, nil
}

// Evaluate returns the deny reasons for in. No reasons means allowed.
func (p *Policy) Evaluate(ctx context.Context, in PolicyInput) ([]string, error) {
	ctx, span := tracer.Start(ctx, "tools.policy.evaluate",
		trace.WithAttributes(attribute.String("tool", in.Tool)))
	defer span.End()

	results, err := p.prepared.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"tool":    in.Tool,
		"route":   string(in.Route),
		"payload": in.Payload,
	}))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("evaluating tool access policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	// A set of strings comes back as []interface{}.
	var reasons []string
	if set, ok := results[0].Expressions[0].Value.([]interface{}); ok {
		for _, v := range set {
			if s, ok := v.(string); ok {
				reasons = append(reasons, s)
			}
		}
	}
	span.SetAttributes(attribute.Int("policy.deny_count", len(reasons)))
	return reasons, nil
}
