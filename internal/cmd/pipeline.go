package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/aitsambajwa-iss/Checkoutly/internal/audit"
	"github.com/aitsambajwa-iss/Checkoutly/internal/config"
	"github.com/aitsambajwa-iss/Checkoutly/internal/inventory"
	"github.com/aitsambajwa-iss/Checkoutly/internal/llm"
	"github.com/aitsambajwa-iss/Checkoutly/internal/memory"
	"github.com/aitsambajwa-iss/Checkoutly/internal/orchestrator"
	"github.com/aitsambajwa-iss/Checkoutly/internal/postgrest"
	"github.com/aitsambajwa-iss/Checkoutly/internal/redact"
	"github.com/aitsambajwa-iss/Checkoutly/internal/server"
	"github.com/aitsambajwa-iss/Checkoutly/internal/tools"
	"github.com/aitsambajwa-iss/Checkoutly/internal/vault"
	"github.com/aitsambajwa-iss/Checkoutly/internal/workflow"
)

// sweeper is implemented by memory stores that expire entries in-process.
type sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// pipeline is a fully wired chat turn handler and the resources it owns.
type pipeline struct {
	orchestrator *orchestrator.Orchestrator
	memory       memory.Store
	audit        *audit.Logger
	closers      []io.Closer
}

// loadConfig reads configuration and resolves secrets held in SSM.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.NeedsParameterStore() {
		params, err := config.NewParameterStoreFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("parameter store: %w", err)
		}
		if err := cfg.ResolveSecrets(ctx, params); err != nil {
			return nil, err
		}
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	cfg.WarnIfDefaultKeys()
	return cfg, nil
}

// buildPipeline opens every store named by cfg and assembles the orchestrator.
// On error everything opened so far is closed.
func buildPipeline(ctx context.Context, cfg *config.Config) (_ *pipeline, err error) {
	p := &pipeline{}
	defer func() {
		if err != nil {
			_ = p.Close(context.Background())
		}
	}()

	var (
		tokens vault.Writer
		sink   audit.Sink
	)
	switch cfg.StorageBackend {
	case "postgrest":
		client := postgrest.NewClient(cfg.PostgRESTURL, cfg.PostgRESTKey, cfg.ToolTimeout)
		tokens, sink = client, client
	default:
		vs, err := vault.NewSQLiteStore(cfg.VaultDBPath(), cfg.VaultKey)
		if err != nil {
			return nil, fmt.Errorf("initializing vault: %w", err)
		}
		p.closers = append(p.closers, vs)
		as, err := audit.NewSQLiteStore(cfg.AuditDBPath(), cfg.AuditSigningKey, cfg.AuditSealKey)
		if err != nil {
			return nil, fmt.Errorf("initializing audit store: %w", err)
		}
		p.closers = append(p.closers, as)
		tokens, sink = vs, as
	}
	p.audit = audit.NewLogger(sink)

	catalog, err := openInventory(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if c, ok := catalog.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}

	p.memory, err = memory.NewStore(ctx, memory.Options{
		Backend:     cfg.SessionBackend,
		TTL:         cfg.SessionTTL,
		MaxEntries:  cfg.SessionMaxEntries,
		RedisURL:    cfg.RedisURL,
		DynamoTable: cfg.DynamoDBTable,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing session memory: %w", err)
	}
	if c, ok := p.memory.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}

	provider, err := llm.NewProvider(ctx, llm.Options{
		Provider:      cfg.LLMProvider,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiAPIKey:  cfg.GeminiAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing model provider: %w", err)
	}
	if c, ok := provider.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}

	policy, err := tools.NewPolicy(ctx, cfg.DisabledTools)
	if err != nil {
		return nil, fmt.Errorf("compiling tool policy: %w", err)
	}
	backend := workflow.NewClient(workflow.Config{
		BaseURL:       cfg.WorkflowBaseURL,
		PaymentURL:    cfg.PaymentWebhookURL,
		PaymentAPIKey: cfg.PaymentAPIKey,
		ReviewURL:     cfg.ReviewWebhookURL,
		Timeout:       cfg.ToolTimeout,
	})
	dispatcher := tools.NewDispatcher(tools.NewDefaultRegistry(catalog, p.memory, backend), policy)

	redactor, err := redact.New(redact.WithVault(tokens))
	if err != nil {
		return nil, fmt.Errorf("initializing redactor: %w", err)
	}

	p.orchestrator = orchestrator.New(orchestrator.Config{
		Provider:     provider,
		Redactor:     redactor,
		Dispatcher:   dispatcher,
		Memory:       p.memory,
		Audit:        p.audit,
		Model:        cfg.Model,
		ModelTimeout: cfg.ModelTimeout,
	})

	log.Info().
		Str("provider", provider.Name()).
		Str("model", cfg.Model).
		Str("storage", cfg.StorageBackend).
		Str("inventory", cfg.InventoryBackend).
		Str("session", cfg.SessionBackend).
		Strs("disabled_tools", cfg.DisabledTools).
		Msg("pipeline_ready")
	return p, nil
}

func openInventory(ctx context.Context, cfg *config.Config) (inventory.Store, error) {
	switch cfg.InventoryBackend {
	case "postgres":
		s, err := inventory.NewPostgresStore(ctx, cfg.InventoryDSN)
		if err != nil {
			return nil, fmt.Errorf("initializing inventory: %w", err)
		}
		return s, nil
	case "postgrest":
		return postgrest.NewClient(cfg.PostgRESTURL, cfg.PostgRESTKey, cfg.ToolTimeout), nil
	default:
		s, err := inventory.NewSQLiteStore(cfg.InventoryDBPath())
		if err != nil {
			return nil, fmt.Errorf("initializing inventory: %w", err)
		}
		return s, nil
	}
}

// serverOptions maps the HTTP settings of cfg.
func serverOptions(cfg *config.Config) []server.Option {
	return []server.Option{
		server.WithCORSOrigins(cfg.CORSOrigins),
		server.WithRateLimiter(server.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)),
		server.WithVersion(resolvedVersion()),
	}
}

// Close drains pending audit writes, then closes stores in reverse order.
func (p *pipeline) Close(ctx context.Context) error {
	var errs []error
	if p.audit != nil {
		if err := p.audit.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("draining audit log: %w", err))
		}
	}
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
