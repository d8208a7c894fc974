package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"

	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
)

// GeminiProvider implements Provider for the Gemini API.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a Gemini client authenticated with apiKey.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// Generate sends the conversation to Gemini with the tools declared as
// function declarations.
func (p *GeminiProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "gen_ai.generate",
		trace.WithAttributes(checkoutlyotel.LLMRequestAttributes("gemini", req.Model, req.Temperature, req.MaxTokens, len(req.Tools))...))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, TimeoutLLMCall)
	defer cancel()

	system, history, last, err := splitGeminiMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	model := p.client.GenerativeModel(req.Model)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(req.Tools) > 0 {
		decls, err := geminiDeclarations(req.Tools)
		if err != nil {
			return nil, err
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	session := model.StartChat()
	session.History = history

	start := time.Now()
	resp, err := session.SendMessage(ctx, last...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("gemini api call: %w", err)
	}

	out, err := fromGeminiResponse(resp)
	if err != nil {
		return nil, err
	}
	out.Model = req.Model

	span.SetAttributes(checkoutlyotel.LLMUsageAttributes(out.InputTokens, out.OutputTokens)...)
	span.SetAttributes(checkoutlyotel.GenAIResponseFinishReason.String(out.FinishReason))
	if tc, ok := out.FirstToolCall(); ok {
		span.SetAttributes(checkoutlyotel.GenAIResponseToolName.String(tc.Name))
	}
	RecordUsageMetrics(ctx, p.Name(), req.Model, out.InputTokens, out.OutputTokens, time.Since(start))
	return out, nil
}

// splitGeminiMessages folds system messages into one instruction and maps the
// remaining turns onto Gemini's user/model roles. The final turn must be
// from the user.
func splitGeminiMessages(msgs []Message) (string, []*genai.Content, []genai.Part, error) {
	var (
		system []string
		turns  []*genai.Content
	)
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleUser:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		case RoleAssistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			return "", nil, nil, fmt.Errorf("gemini: unsupported role %q", m.Role)
		}
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != "user" {
		return "", nil, nil, errors.New("gemini: conversation must end with a user message")
	}
	last := turns[len(turns)-1]
	return strings.Join(system, "\n\n"), turns[:len(turns)-1], last.Parts, nil
}

func geminiDeclarations(tools []Tool) ([]*genai.FunctionDeclaration, error) {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		schema, err := toGeminiSchema(t.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Name, err)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}
	return decls, nil
}

// jsonSchema is the subset of JSON schema Gemini understands.
type jsonSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Properties  map[string]*jsonSchema `json:"properties"`
	Required    []string               `json:"required"`
	Items       *jsonSchema            `json:"items"`
	Enum        []string               `json:"enum"`
}

func toGeminiSchema(raw json.RawMessage) (*genai.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var s jsonSchema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding tool schema: %w", err)
	}
	return convertSchema(&s)
}

func convertSchema(s *jsonSchema) (*genai.Schema, error) {
	if s == nil {
		return nil, nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
	}
	switch s.Type {
	case "object", "":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		return nil, fmt.Errorf("unsupported schema type %q", s.Type)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			converted, err := convertSchema(prop)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", name, err)
			}
			out.Properties[name] = converted
		}
	}
	if s.Items != nil {
		items, err := convertSchema(s.Items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		out.Items = items
	}
	return out, nil
}

func fromGeminiResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini api call: %w", ErrNoChoices)
	}
	cand := resp.Candidates[0]
	out := &Response{FinishReason: strings.ToLower(strings.TrimPrefix(cand.FinishReason.String(), "FinishReason"))}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if cand.Content == nil {
		return out, nil
	}

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			text.WriteString(string(v))
		case genai.FunctionCall:
			call, err := geminiToolCall(v)
			if err != nil {
				return nil, err
			}
			out.ToolCalls = append(out.ToolCalls, call)
		case *genai.FunctionCall:
			call, err := geminiToolCall(*v)
			if err != nil {
				return nil, err
			}
			out.ToolCalls = append(out.ToolCalls, call)
		}
	}
	out.Content = text.String()
	return out, nil
}

func geminiToolCall(fc genai.FunctionCall) (ToolCall, error) {
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return ToolCall{}, fmt.Errorf("encoding %s arguments: %w", fc.Name, err)
	}
	return ToolCall{Name: fc.Name, Arguments: data}, nil
}
