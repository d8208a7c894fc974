package llm

import (
	"context"
	"fmt"
)

// Options selects and configures a provider.
type Options struct {
	Provider      string // "openai" or "gemini"
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
}

// NewProvider builds the provider named by opts.Provider.
func NewProvider(ctx context.Context, opts Options) (Provider, error) {
	switch opts.Provider {
	case "openai", "":
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
		}
		if opts.OpenAIBaseURL != "" {
			return NewOpenAIProviderWithBaseURL(opts.OpenAIAPIKey, opts.OpenAIBaseURL), nil
		}
		return NewOpenAIProvider(opts.OpenAIAPIKey), nil
	case "gemini":
		if opts.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
		}
		p, err := NewGeminiProvider(ctx, opts.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, opts.Provider)
	}
}
