// Package orchestrator runs one chat turn: redaction, tool selection, at most
// one tool dispatch, and narration of the tool result.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aitsambajwa-iss/Checkoutly/internal/audit"
	"github.com/aitsambajwa-iss/Checkoutly/internal/llm"
	"github.com/aitsambajwa-iss/Checkoutly/internal/memory"
	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
	"github.com/aitsambajwa-iss/Checkoutly/internal/redact"
	"github.com/aitsambajwa-iss/Checkoutly/internal/requestctx"
	"github.com/aitsambajwa-iss/Checkoutly/internal/tools"
)

var tracer = checkoutlyotel.Tracer("github.com/aitsambajwa-iss/Checkoutly/internal/orchestrator")

// ErrEmptyMessage is returned for a blank inbound message.
var ErrEmptyMessage = errors.New("message is required")

// Model call parameters.
const (
	SelectionTemperature = 0.1
	SelectionMaxTokens   = 300
	NarrationTemperature = 0.7
	NarrationMaxTokens   = 500
	DefaultModel         = "gpt-4"
	DefaultModelTimeout  = 30 * time.Second
)

// Turn states, logged as the turn advances.
const (
	stateAwaitingModel      = "awaiting_model"
	stateAwaitingToolResult = "awaiting_tool_result"
	stateDone               = "done"
)

// Config wires the orchestrator's dependencies. Memory and Audit are optional.
type Config struct {
	Provider     llm.Provider
	Redactor     *redact.Redactor
	Dispatcher   *tools.Dispatcher
	Memory       memory.Store
	Audit        *audit.Logger
	Model        string
	ModelTimeout time.Duration
}

// Orchestrator handles chat turns. Safe for concurrent use.
type Orchestrator struct {
	provider   llm.Provider
	redactor   *redact.Redactor
	dispatcher *tools.Dispatcher
	memory     memory.Store
	audit      *audit.Logger
	model      string
	timeout    time.Duration
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		provider:   cfg.Provider,
		redactor:   cfg.Redactor,
		dispatcher: cfg.Dispatcher,
		memory:     cfg.Memory,
		audit:      cfg.Audit,
		model:      cfg.Model,
		timeout:    cfg.ModelTimeout,
	}
	if o.model == "" {
		o.model = DefaultModel
	}
	if o.timeout <= 0 {
		o.timeout = DefaultModelTimeout
	}
	if o.audit == nil {
		o.audit = audit.NewLogger(nil)
	}
	return o
}

// Turn is one inbound shopper message.
type Turn struct {
	ChatID  string
	Message string
}

// Reply is what the caller gets back. Response is either text or a
// client action JSON object.
type Reply struct {
	Response      string `json:"response"`
	ChatID        string `json:"chatId"`
	TokensApplied int    `json:"tokensApplied"`
}

// HandleTurn runs one turn. Upstream failures degrade to fixed replies; the
// only error returned is ErrEmptyMessage.
func (o *Orchestrator) HandleTurn(ctx context.Context, turn Turn) (*Reply, error) {
	if strings.TrimSpace(turn.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if turn.ChatID == "" {
		turn.ChatID = requestctx.NewChatID()
	}
	turnID := requestctx.TurnID(ctx)
	if turnID == "" {
		turnID = requestctx.NewTurnID()
	}
	ctx = requestctx.WithChat(ctx, turn.ChatID, turnID)

	ctx, span := tracer.Start(ctx, "orchestrator.turn",
		trace.WithAttributes(
			checkoutlyotel.ChatID.String(turn.ChatID),
			checkoutlyotel.TurnID.String(turnID),
		))
	defer span.End()
	start := time.Now()

	red := o.redactor.Redact(ctx, redact.Message{
		Role:    redact.RoleUser,
		Content: turn.Message,
		ChatID:  turn.ChatID,
		TurnID:  turnID,
	})
	o.audit.Record(ctx, audit.Entry{
		ChatID:    turn.ChatID,
		TurnID:    turnID,
		Role:      redact.RoleUser,
		Original:  turn.Message,
		Sanitized: red.Sanitized,
		Tokens:    red.Kinds(),
	})
	span.SetAttributes(checkoutlyotel.TokensApplied.Int(len(red.Tokens)))

	out := o.resolve(ctx, turn.ChatID, red.Sanitized)
	response := out.text
	if out.kind == needsNarration {
		response = o.narrate(ctx, red.Sanitized, out.tool, out.text)
	}

	o.logState(ctx, stateDone,
		func(e *zerolog.Event) {
			e.Str("outcome", out.kind.String()).Int64("duration_ms", time.Since(start).Milliseconds())
		})
	span.SetAttributes(attribute.String("turn.outcome", out.kind.String()))

	return &Reply{
		Response:      response,
		ChatID:        turn.ChatID,
		TokensApplied: len(red.Tokens),
	}, nil
}

// resolve makes the selection call and dispatches the tool it picks.
func (o *Orchestrator) resolve(ctx context.Context, chatID, message string) outcome {
	o.logState(ctx, stateAwaitingModel, nil)

	var lastProduct string
	if o.memory != nil {
		p, err := o.memory.Get(ctx, chatID)
		if err != nil {
			log.Warn().Err(err).Func(checkoutlyotel.LogTraceFields(ctx)).Msg("memory_get_failed")
		}
		lastProduct = p
	}

	decls := o.dispatcher.Registry().Declarations()
	system, err := renderSystemPrompt(decls, lastProduct)
	if err != nil {
		log.Error().Err(err).Func(checkoutlyotel.LogTraceFields(ctx)).Msg("system_prompt_failed")
		return outcome{kind: plainText, text: FallbackReply}
	}

	resp, err := o.generate(ctx, "orchestrator.select", &llm.Request{
		Model: o.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: message},
		},
		Temperature: SelectionTemperature,
		MaxTokens:   SelectionMaxTokens,
		Tools:       decls,
	})
	if err != nil {
		log.Error().Err(err).Func(checkoutlyotel.LogTraceFields(ctx)).Msg("model_selection_failed")
		return outcome{kind: plainText, text: FallbackReply}
	}

	call, ok := resp.FirstToolCall()
	if !ok {
		return classify(resp.Content, "", tools.Result{}, nil)
	}

	o.logState(ctx, stateAwaitingToolResult, func(e *zerolog.Event) { e.Str("tool", call.Name) })
	result, err := o.dispatcher.Dispatch(ctx, chatID, tools.Invocation{Name: call.Name, Arguments: call.Arguments})
	if err != nil && !errors.Is(err, tools.ErrToolDenied) {
		log.Warn().Err(err).Str("tool", call.Name).Func(checkoutlyotel.LogTraceFields(ctx)).Msg("tool_dispatch_failed")
	}
	return classify(resp.Content, call.Name, result, err)
}

// narrate phrases a tool result. Failures fall back to the fixed reply.
func (o *Orchestrator) narrate(ctx context.Context, message, toolName, toolResult string) string {
	resp, err := o.generate(ctx, "orchestrator.narrate", &llm.Request{
		Model:       o.model,
		Messages:    narrationMessages(message, toolName, toolResult),
		Temperature: NarrationTemperature,
		MaxTokens:   NarrationMaxTokens,
	})
	if err != nil {
		log.Error().Err(err).Str("tool", toolName).Func(checkoutlyotel.LogTraceFields(ctx)).Msg("model_narration_failed")
		return FallbackReply
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return FallbackReply
	}
	return text
}

// generate is one bounded provider call.
func (o *Orchestrator) generate(ctx context.Context, spanName string, req *llm.Request) (*llm.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, spanName,
		trace.WithAttributes(checkoutlyotel.LLMRequestAttributes(
			o.provider.Name(), req.Model, req.Temperature, req.MaxTokens, len(req.Tools))...))
	defer span.End()

	resp, err := o.provider.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(checkoutlyotel.LLMUsageAttributes(resp.InputTokens, resp.OutputTokens)...)
	return resp, nil
}

func (o *Orchestrator) logState(ctx context.Context, state string, fields func(e *zerolog.Event)) {
	e := log.Debug().
		Str("chat_id", requestctx.ChatID(ctx)).
		Str("turn_id", requestctx.TurnID(ctx)).
		Str("state", state)
	if fields != nil {
		e = e.Func(fields)
	}
	e.Func(checkoutlyotel.LogTraceFields(ctx)).Msg("turn_state")
}
