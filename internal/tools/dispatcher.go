package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
)

var tracer = checkoutlyotel.Tracer("github.com/aitsambajwa-iss/Checkoutly/internal/tools")

var (
	// ErrUnknownTool is returned for a name the registry does not hold.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArguments is returned when arguments fail to parse or
	// violate the tool's input schema.
	ErrInvalidArguments = errors.New("invalid tool arguments")
	// ErrToolDenied is returned alongside a narratable result when the
	// access policy blocks a call.
	ErrToolDenied = errors.New("tool call denied by policy")
)

// DeniedMessage is the narratable content of a denied call.
const DeniedMessage = "That action isn't available right now. Is there something else I can help with?"

// Invocation is a tool call as the model produced it.
type Invocation struct {
	Name      string
	Arguments json.RawMessage
}

// Dispatcher validates, authorizes, and routes tool invocations.
type Dispatcher struct {
	registry *Registry
	policy   *Policy
}

// NewDispatcher creates a dispatcher. A nil policy allows everything.
func NewDispatcher(registry *Registry, policy *Policy) *Dispatcher {
	return &Dispatcher{registry: registry, policy: policy}
}

// Registry returns the tools the dispatcher routes to.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs one invocation for chatID.
func (d *Dispatcher) Dispatch(ctx context.Context, chatID string, inv Invocation) (Result, error) {
	ctx, span := tracer.Start(ctx, "tools.dispatch",
		trace.WithAttributes(
			checkoutlyotel.ToolName.String(inv.Name),
			checkoutlyotel.ChatID.String(chatID),
		))
	defer span.End()
	start := time.Now()

	tool, ok := d.registry.Get(inv.Name)
	if !ok {
		span.SetStatus(codes.Error, "unknown tool")
		recordToolCall(ctx, inv.Name, "", "unknown")
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, inv.Name)
	}
	span.SetAttributes(checkoutlyotel.ToolRoute.String(string(tool.Route())))

	args := inv.Arguments
	if len(strings.TrimSpace(string(args))) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	if err := validateArguments(tool.InputSchema(), args); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid arguments")
		recordToolCall(ctx, tool.Name(), tool.Route(), "invalid")
		log.Warn().Err(err).Str("tool", tool.Name()).Func(checkoutlyotel.LogTraceFields(ctx)).Msg("tool_arguments_rejected")
		return Result{}, err
	}

	call := Call{ChatID: chatID, Arguments: args}

	fwd, forwarded := tool.(Forwarder)
	var payload any
	input := PolicyInput{Tool: tool.Name(), Route: tool.Route()}
	if forwarded {
		p, err := fwd.Payload(call)
		if err != nil {
			span.RecordError(err)
			recordToolCall(ctx, tool.Name(), tool.Route(), "invalid")
			return Result{}, err
		}
		payload = p
		body, err := json.Marshal(p)
		if err != nil {
			return Result{}, fmt.Errorf("encoding %s payload: %w", tool.Name(), err)
		}
		input.Payload = string(body)
	}

	if d.policy != nil {
		reasons, err := d.policy.Evaluate(ctx, input)
		if err != nil {
			span.RecordError(err)
			return Result{}, err
		}
		if len(reasons) > 0 {
			span.SetStatus(codes.Error, "denied")
			span.SetAttributes(attribute.StringSlice("policy.reasons", reasons))
			recordToolCall(ctx, tool.Name(), tool.Route(), "denied")
			log.Warn().
				Str("tool", tool.Name()).
				Strs("reasons", reasons).
				Func(checkoutlyotel.LogTraceFields(ctx)).
				Msg("tool_call_denied")
			return Result{Kind: Narratable, Content: DeniedMessage},
				fmt.Errorf("%w: %s", ErrToolDenied, strings.Join(reasons, "; "))
		}
	}

	var (
		result Result
		err    error
	)
	if forwarded {
		result, err = fwd.Forward(ctx, call, payload)
	} else {
		result, err = tool.Execute(ctx, call)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordToolCall(ctx, tool.Name(), tool.Route(), "error")
		return Result{}, err
	}

	recordToolCall(ctx, tool.Name(), tool.Route(), "ok")
	log.Info().
		Str("tool", tool.Name()).
		Str("route", string(tool.Route())).
		Str("result_kind", result.Kind.String()).
		Dur("duration", time.Since(start)).
		Func(checkoutlyotel.LogTraceFields(ctx)).
		Msg("tool_dispatched")
	return result, nil
}

// validateArguments checks args against schema.
func validateArguments(schema, args json.RawMessage) error {
	var probe map[string]any
	if err := json.Unmarshal(args, &probe); err != nil {
		return fmt.Errorf("%w: arguments are not a JSON object: %v", ErrInvalidArguments, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(args),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidArguments, strings.Join(msgs, "; "))
	}
	return nil
}

const meterName = "github.com/aitsambajwa-iss/Checkoutly/internal/tools"

var (
	toolCallCounter   metric.Int64Counter
	metricsOnce       sync.Once
	metricsRegistered bool
)

func initMetrics() {
	var err error
	toolCallCounter, err = otel.Meter(meterName).Int64Counter(
		"checkoutly.tool.calls",
		metric.WithDescription("Dispatched tool calls by tool, route and outcome"),
	)
	if err != nil {
		return
	}
	metricsRegistered = true
}

func recordToolCall(ctx context.Context, name string, route Route, outcome string) {
	metricsOnce.Do(initMetrics)
	if !metricsRegistered {
		return
	}
	toolCallCounter.Add(ctx, 1, metric.WithAttributes(
		checkoutlyotel.ToolName.String(name),
		checkoutlyotel.ToolRoute.String(string(route)),
		attribute.String("outcome", outcome),
	))
}
