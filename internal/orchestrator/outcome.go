package orchestrator

import (
	"errors"
	"strings"

	"github.com/aitsambajwa-iss/Checkoutly/internal/tools"
)

// Fixed replies.
const (
	FallbackReply = "I'm here to help with your shopping needs! How can I assist you today?"
	EmptyReply    = "How can I help you today?"
	ClarifyReply  = "Could you tell me a little more about what you're looking for?"
)

type outcomeKind int

const (
	plainText outcomeKind = iota
	clientAction
	needsNarration
)

func (k outcomeKind) String() string {
	switch k {
	case plainText:
		return "plain_text"
	case clientAction:
		return "client_action"
	default:
		return "needs_narration"
	}
}

// outcome is what a turn resolved to after the selection call and at most
// one tool dispatch. Text is the final reply for plainText and clientAction,
// and the tool data to phrase for needsNarration.
type outcome struct {
	kind outcomeKind
	text string
	tool string
}

// classify folds the selection reply and the dispatch result into an outcome.
// toolName is empty when the model called no tool.
func classify(content, toolName string, result tools.Result, dispatchErr error) outcome {
	content = strings.TrimSpace(content)
	if toolName == "" {
		if content == "" {
			return outcome{kind: plainText, text: EmptyReply}
		}
		return outcome{kind: plainText, text: content}
	}

	switch {
	case dispatchErr == nil:
	case errors.Is(dispatchErr, tools.ErrToolDenied):
		return outcome{kind: needsNarration, text: result.Content, tool: toolName}
	case errors.Is(dispatchErr, tools.ErrUnknownTool), errors.Is(dispatchErr, tools.ErrInvalidArguments):
		if content != "" {
			return outcome{kind: plainText, text: content}
		}
		return outcome{kind: plainText, text: ClarifyReply}
	default:
		return outcome{kind: plainText, text: FallbackReply}
	}

	if result.Kind == tools.ClientAction {
		return outcome{kind: clientAction, text: result.Content, tool: toolName}
	}
	return outcome{kind: needsNarration, text: result.Content, tool: toolName}
}
