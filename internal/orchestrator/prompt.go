package orchestrator

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/aitsambajwa-iss/Checkoutly/internal/llm"
)

//go:embed prompts/system.tmpl
var systemPromptSource string

//go:embed prompts/narration.txt
var narrationPrompt string

var systemPromptTemplate = template.Must(template.New("system").Parse(systemPromptSource))

type systemPromptData struct {
	Tools       []llm.Tool
	LastProduct string
}

// renderSystemPrompt builds the tool-selection instruction.
func renderSystemPrompt(tools []llm.Tool, lastProduct string) (string, error) {
	var b strings.Builder
	if err := systemPromptTemplate.Execute(&b, systemPromptData{Tools: tools, LastProduct: lastProduct}); err != nil {
		return "", fmt.Errorf("rendering system prompt: %w", err)
	}
	return b.String(), nil
}

// narrationMessages is the second call's conversation: the shopper's message,
// the tool data as an assistant turn, then the phrasing request.
func narrationMessages(userMessage, toolName, toolResult string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: narrationPrompt},
		{Role: llm.RoleUser, Content: userMessage},
		{Role: llm.RoleAssistant, Content: fmt.Sprintf("I called the %s function and got this data: %s", toolName, toolResult)},
		{Role: llm.RoleUser, Content: "Please provide a natural, friendly response. Use **bolding** and include [PRODUCT:] tags for any products mentioned in the data."},
	}
}
