// Package tools declares the tools offered to the model and routes each
// invocation to local code, a client-side action, or the workflow backend.
package tools

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aitsambajwa-iss/Checkoutly/internal/llm"
)

// Route says where a tool runs.
type Route string

// Routes.
const (
	RouteLocal     Route = "local"
	RouteClient    Route = "client_action"
	RouteForwarded Route = "forwarded"
)

// Call is one validated invocation handed to a tool.
type Call struct {
	ChatID    string
	Arguments json.RawMessage
}

// Tool is the interface every dispatchable tool implements.
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	Route() Route
	Execute(ctx context.Context, call Call) (Result, error)
}

// Forwarder is implemented by tools that post to the workflow backend. The
// dispatcher builds the payload first so policy can inspect it.
type Forwarder interface {
	Tool
	Payload(call Call) (any, error)
	Forward(ctx context.Context, call Call, payload any) (Result, error)
}

// Registry holds tools in declaration order. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. Registering a name twice replaces the tool but keeps
// its original position.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; !exists {
		r.order = append(r.order, tool.Name())
	}
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

// List returns all registered tools in declaration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

// Declarations renders the registry as model function declarations.
func (r *Registry) Declarations() []llm.Tool {
	tools := r.List()
	out := make([]llm.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, llm.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.InputSchema(),
		})
	}
	return out
}
