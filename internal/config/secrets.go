package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
		log.Debug().Str("path", p).Msg("dotenv_loaded")
	}
	return nil
}

// ssmAPI is the slice of *ssm.Client used to resolve parameters.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterStore reads decrypted values from AWS SSM Parameter Store.
type ParameterStore struct {
	api ssmAPI
}

// NewParameterStore wraps an SSM API implementation.
func NewParameterStore(api ssmAPI) (*ParameterStore, error) {
	if api == nil {
		return nil, errors.New("config: ssm api must not be nil")
	}
	return &ParameterStore{api: api}, nil
}

// NewParameterStoreFromEnv loads AWS credentials and region from the environment.
func NewParameterStoreFromEnv(ctx context.Context) (*ParameterStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("config: loading aws config: %w", err)
	}
	return NewParameterStore(ssm.NewFromConfig(cfg))
}

// GetParameter returns the decrypted value of name.
func (p *ParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("config: parameter name is required")
	}
	withDecryption := true
	out, err := p.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("config: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("config: parameter %q has no value", name)
	}
	return *out.Parameter.Value, nil
}

// ParameterGetter is satisfied by *ParameterStore.
type ParameterGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// NeedsParameterStore reports whether ResolveSecrets has anything to fetch.
func (c *Config) NeedsParameterStore() bool {
	return c.OpenAIAPIKey == "" && c.OpenAIAPIKeyParam != ""
}

// ResolveSecrets fills secrets that were configured by parameter name.
// An explicit OPENAI key always wins over the parameter.
func (c *Config) ResolveSecrets(ctx context.Context, params ParameterGetter) error {
	if !c.NeedsParameterStore() {
		return nil
	}
	if params == nil {
		return fmt.Errorf("%s is set but no parameter store is available", KeyOpenAIAPIKeyParam)
	}
	v, err := params.GetParameter(ctx, c.OpenAIAPIKeyParam)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", KeyOpenAIAPIKeyParam, err)
	}
	c.OpenAIAPIKey = strings.TrimSpace(v)
	log.Info().Str("parameter", c.OpenAIAPIKeyParam).Msg("openai_key_resolved_from_ssm")
	return nil
}
