package tools

import (
	"encoding/json"
	"fmt"
)

// Kind tells the orchestrator what to do with a Result.
type Kind int

const (
	// Narratable results are phrased by a second model call.
	Narratable Kind = iota
	// ClientAction results go back to the caller untouched.
	ClientAction
)

func (k Kind) String() string {
	switch k {
	case Narratable:
		return "narratable"
	case ClientAction:
		return "client_action"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Result is the outcome of one dispatched tool.
type Result struct {
	Kind    Kind
	Content string
}

// Action is the client-side action payload. Field order matches what the
// chat widget expects.
type Action struct {
	Action      string `json:"action"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
	Size        string `json:"size"`
	Color       string `json:"color"`
	Message     string `json:"message"`
}

type messageAction struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

func clientAction(v any) (Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Result{}, fmt.Errorf("encoding client action: %w", err)
	}
	return Result{Kind: ClientAction, Content: string(data)}, nil
}
