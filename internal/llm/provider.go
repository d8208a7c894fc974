// Package llm wraps the model providers behind one function-calling contract.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// TimeoutLLMCall is the ceiling for one provider call. Callers usually set a
// shorter deadline on ctx.
const TimeoutLLMCall = 60 * time.Second

// Roles accepted in Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Domain errors for the LLM package.
var (
	ErrUnknownProvider = errors.New("unknown llm provider")
	ErrMissingAPIKey   = errors.New("llm api key is not set")
	ErrNoChoices       = errors.New("no choices returned")
)

// Provider is the interface all LLM providers must implement.
type Provider interface {
	// Name returns the provider identifier ("openai", "gemini").
	Name() string
	// Generate sends a completion request to the model and returns the response.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request represents an LLM generation request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Tools       []Tool
}

// Message represents a chat message.
type Message struct {
	Role    string
	Content string
}

// Tool is a function declaration offered to the model. Parameters is a JSON
// schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Response represents an LLM generation response.
type Response struct {
	Content      string
	FinishReason string
	InputTokens  int
	OutputTokens int
	Model        string
	ToolCalls    []ToolCall
}

// ToolCall is one function invocation requested by the model. Arguments is
// the raw JSON object the model produced and may be malformed.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// FirstToolCall returns the first requested call, if any.
func (r *Response) FirstToolCall() (ToolCall, bool) {
	if r == nil || len(r.ToolCalls) == 0 {
		return ToolCall{}, false
	}
	return r.ToolCalls[0], true
}
