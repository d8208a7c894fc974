package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

// GenAI semantic convention keys used on model spans.
const (
	GenAISystem       = attribute.Key("gen_ai.system") // "openai", "gemini"
	GenAIRequestModel = attribute.Key("gen_ai.request.model")

	GenAIRequestTemperature = attribute.Key("gen_ai.request.temperature")
	GenAIRequestMaxTokens   = attribute.Key("gen_ai.request.max_tokens")
	GenAIRequestToolCount   = attribute.Key("gen_ai.request.tool_count")

	GenAIUsageInputTokens  = attribute.Key("gen_ai.usage.input_tokens")
	GenAIUsageOutputTokens = attribute.Key("gen_ai.usage.output_tokens")

	GenAIResponseFinishReason = attribute.Key("gen_ai.response.finish_reason")
	GenAIResponseToolName     = attribute.Key("gen_ai.response.tool_name")
)

// Chat pipeline keys.
const (
	ChatID        = attribute.Key("checkoutly.chat_id")
	TurnID        = attribute.Key("checkoutly.turn_id")
	ToolName      = attribute.Key("checkoutly.tool.name")
	ToolRoute     = attribute.Key("checkoutly.tool.route") // local, forwarded, client_action
	RedactionKind = attribute.Key("checkoutly.redaction.kind")
	TokensApplied = attribute.Key("checkoutly.redaction.tokens_applied")
)

// LLMRequestAttributes creates standard attributes for model requests.
func LLMRequestAttributes(system, model string, temperature float64, maxTokens, toolCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		GenAISystem.String(system),
		GenAIRequestModel.String(model),
		GenAIRequestTemperature.Float64(temperature),
		GenAIRequestMaxTokens.Int(maxTokens),
		GenAIRequestToolCount.Int(toolCount),
	}
}

// LLMUsageAttributes creates attributes for token usage
func LLMUsageAttributes(inputTokens, outputTokens int) []attribute.KeyValue {
	return []attribute.KeyValue{
		GenAIUsageInputTokens.Int(inputTokens),
		GenAIUsageOutputTokens.Int(outputTokens),
	}
}
