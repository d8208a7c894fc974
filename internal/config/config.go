// Package config holds the operator-level configuration of a Checkoutly
// deployment: storage locations, crypto keys, model and backend endpoints.
//
// Values come from, in increasing precedence: defaults, checkoutly.yaml,
// a .env file, and CHECKOUTLY_* environment variables. The OpenAI key may
// instead be named as an SSM parameter and resolved at startup.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/aitsambajwa-iss/Checkoutly/internal/cryptoutil"
)

// EnvPrefix is prepended to every key to form its environment variable.
const EnvPrefix = "CHECKOUTLY"

// Viper keys. Each maps to an env var with the CHECKOUTLY_ prefix
// (e.g. "vault_key" -> CHECKOUTLY_VAULT_KEY) and to a YAML field in
// checkoutly.yaml.
const (
	KeyDataDir              = "data_dir"
	KeyListenAddr           = "listen_addr"
	KeyVaultKey             = "vault_key"
	KeyAuditSigningKey      = "audit_signing_key"
	KeyAuditSealKey         = "audit_seal_key"
	KeyLLMProvider          = "llm_provider"
	KeyModel                = "model"
	KeyOpenAIAPIKey         = "openai_api_key"
	KeyOpenAIAPIKeyParam    = "openai_api_key_param"
	KeyOpenAIBaseURL        = "openai_base_url"
	KeyGeminiAPIKey         = "gemini_api_key"
	KeyModelTimeout         = "model_timeout"
	KeyToolTimeout          = "tool_timeout"
	KeyWorkflowBaseURL      = "workflow_base_url"
	KeyPaymentWebhookURL    = "payment_webhook_url"
	KeyPaymentAPIKey        = "payment_api_key"
	KeyReviewWebhookURL     = "review_webhook_url"
	KeyStorageBackend       = "storage_backend"
	KeyPostgRESTURL         = "postgrest_url"
	KeyPostgRESTKey         = "postgrest_key"
	KeyInventoryBackend     = "inventory_backend"
	KeyInventoryDSN         = "inventory_dsn"
	KeySessionBackend       = "session_backend"
	KeySessionTTL           = "session_ttl"
	KeySessionMaxEntries    = "session_max_entries"
	KeySessionSweepSchedule = "session_sweep_schedule"
	KeyRedisURL             = "redis_url"
	KeyDynamoDBTable        = "dynamodb_table"
	KeyRateLimitRPS         = "rate_limit_rps"
	KeyRateLimitBurst       = "rate_limit_burst"
	KeyCORSOrigins          = "cors_origins"
	KeyDisabledTools        = "disabled_tools"
	KeyOTelEnabled          = "otel_enabled"
	KeyOTelExporter         = "otel_exporter"
	KeyOTelEndpoint         = "otel_endpoint"
)

// Defaults that do NOT involve crypto material. Keys have no baked-in
// defaults; when unset a per-machine fallback is derived and a warning logged.
const (
	DefaultListenAddr           = ":8080"
	DefaultLLMProvider          = "openai"
	DefaultModel                = "gpt-4"
	DefaultModelTimeout         = 30 * time.Second
	DefaultToolTimeout          = 10 * time.Second
	DefaultStorageBackend       = "sqlite"
	DefaultInventoryBackend     = "sqlite"
	DefaultSessionBackend       = "memory"
	DefaultSessionTTL           = 24 * time.Hour
	DefaultSessionMaxEntries    = 10000
	DefaultSessionSweepSchedule = "*/15 * * * *"
	DefaultRateLimitRPS         = 5.0
	DefaultRateLimitBurst       = 10
	DefaultOTelExporter         = "stdout"
)

// Config holds resolved configuration for a Checkoutly process.
type Config struct {
	DataDir    string `validate:"required"`
	ListenAddr string `validate:"required"`

	VaultKey        string // AES-256 key for the token vault (32 bytes or 64 hex)
	AuditSigningKey string // HMAC-SHA256 key for audit records (>=32 bytes)
	AuditSealKey    string // secretbox key for original audit content (32 bytes or 64 hex)

	LLMProvider       string        `validate:"oneof=openai gemini"`
	Model             string        `validate:"required"`
	OpenAIAPIKey      string        // never logged
	OpenAIAPIKeyParam string        // SSM parameter holding the OpenAI key
	OpenAIBaseURL     string        `validate:"omitempty,url"`
	GeminiAPIKey      string        // never logged
	ModelTimeout      time.Duration `validate:"gt=0"`
	ToolTimeout       time.Duration `validate:"gt=0"`

	WorkflowBaseURL   string `validate:"omitempty,url"`
	PaymentWebhookURL string `validate:"omitempty,url"`
	PaymentAPIKey     string
	ReviewWebhookURL  string `validate:"omitempty,url"`

	StorageBackend   string `validate:"oneof=sqlite postgrest"`
	PostgRESTURL     string `validate:"omitempty,url"`
	PostgRESTKey     string
	InventoryBackend string `validate:"oneof=sqlite postgres postgrest"`
	InventoryDSN     string

	SessionBackend       string        `validate:"oneof=memory redis dynamodb"`
	SessionTTL           time.Duration `validate:"gt=0"`
	SessionMaxEntries    int           `validate:"min=1"`
	SessionSweepSchedule string
	RedisURL             string
	DynamoDBTable        string

	RateLimitRPS   float64 `validate:"gte=0"`
	RateLimitBurst int     `validate:"gte=0"`
	CORSOrigins    []string
	DisabledTools  []string

	OTelEnabled  bool
	OTelExporter string `validate:"oneof=stdout otlp"`
	OTelEndpoint string

	usingDefaultVaultKey   bool
	usingDefaultSigningKey bool
	usingDefaultSealKey    bool
}

// UsingDefaultKeys returns true if any crypto key fell back to a derived default.
func (c *Config) UsingDefaultKeys() bool {
	return c.usingDefaultVaultKey || c.usingDefaultSigningKey || c.usingDefaultSealKey
}

// VaultDBPath returns the full path to the token vault SQLite database.
func (c *Config) VaultDBPath() string {
	return filepath.Join(c.DataDir, "vault.db")
}

// AuditDBPath returns the full path to the audit SQLite database.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// InventoryDBPath returns the full path to the local inventory database.
func (c *Config) InventoryDBPath() string {
	return filepath.Join(c.DataDir, "inventory.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// WarnIfDefaultKeys logs a warning for every crypto key that was derived.
// Suppressed when CHECKOUTLY_QUICKSTART=1 or true.
func (c *Config) WarnIfDefaultKeys() {
	if isQuickstart() {
		return
	}
	if c.usingDefaultVaultKey {
		log.Warn().Msg("Using generated default CHECKOUTLY_VAULT_KEY; set it via env var or config file for production")
	}
	if c.usingDefaultSigningKey {
		log.Warn().Msg("Using generated default CHECKOUTLY_AUDIT_SIGNING_KEY; set it via env var or config file for production")
	}
	if c.usingDefaultSealKey {
		log.Warn().Msg("Using generated default CHECKOUTLY_AUDIT_SEAL_KEY; set it via env var or config file for production")
	}
}

func isQuickstart() bool {
	v := os.Getenv(EnvPrefix + "_QUICKSTART")
	return v == "1" || v == "true" || v == "TRUE"
}

func init() {
	setDefaults()
}

func setDefaults() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
	viper.SetDefault(KeyListenAddr, DefaultListenAddr)
	viper.SetDefault(KeyLLMProvider, DefaultLLMProvider)
	viper.SetDefault(KeyModel, DefaultModel)
	viper.SetDefault(KeyModelTimeout, DefaultModelTimeout)
	viper.SetDefault(KeyToolTimeout, DefaultToolTimeout)
	viper.SetDefault(KeyStorageBackend, DefaultStorageBackend)
	viper.SetDefault(KeyInventoryBackend, DefaultInventoryBackend)
	viper.SetDefault(KeySessionBackend, DefaultSessionBackend)
	viper.SetDefault(KeySessionTTL, DefaultSessionTTL)
	viper.SetDefault(KeySessionMaxEntries, DefaultSessionMaxEntries)
	viper.SetDefault(KeySessionSweepSchedule, DefaultSessionSweepSchedule)
	viper.SetDefault(KeyRateLimitRPS, DefaultRateLimitRPS)
	viper.SetDefault(KeyRateLimitBurst, DefaultRateLimitBurst)
	viper.SetDefault(KeyOTelExporter, DefaultOTelExporter)
}

// Load reads configuration from Viper (env vars, config file and defaults)
// and returns a validated Config. Call LoadDotEnv first to honour .env.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:              resolveDataDir(),
		ListenAddr:           viper.GetString(KeyListenAddr),
		VaultKey:             viper.GetString(KeyVaultKey),
		AuditSigningKey:      viper.GetString(KeyAuditSigningKey),
		AuditSealKey:         viper.GetString(KeyAuditSealKey),
		LLMProvider:          strings.ToLower(viper.GetString(KeyLLMProvider)),
		Model:                viper.GetString(KeyModel),
		OpenAIAPIKey:         viper.GetString(KeyOpenAIAPIKey),
		OpenAIAPIKeyParam:    viper.GetString(KeyOpenAIAPIKeyParam),
		OpenAIBaseURL:        viper.GetString(KeyOpenAIBaseURL),
		GeminiAPIKey:         viper.GetString(KeyGeminiAPIKey),
		ModelTimeout:         viper.GetDuration(KeyModelTimeout),
		ToolTimeout:          viper.GetDuration(KeyToolTimeout),
		WorkflowBaseURL:      viper.GetString(KeyWorkflowBaseURL),
		PaymentWebhookURL:    viper.GetString(KeyPaymentWebhookURL),
		PaymentAPIKey:        viper.GetString(KeyPaymentAPIKey),
		ReviewWebhookURL:     viper.GetString(KeyReviewWebhookURL),
		StorageBackend:       viper.GetString(KeyStorageBackend),
		PostgRESTURL:         viper.GetString(KeyPostgRESTURL),
		PostgRESTKey:         viper.GetString(KeyPostgRESTKey),
		InventoryBackend:     viper.GetString(KeyInventoryBackend),
		InventoryDSN:         viper.GetString(KeyInventoryDSN),
		SessionBackend:       viper.GetString(KeySessionBackend),
		SessionTTL:           viper.GetDuration(KeySessionTTL),
		SessionMaxEntries:    viper.GetInt(KeySessionMaxEntries),
		SessionSweepSchedule: viper.GetString(KeySessionSweepSchedule),
		RedisURL:             viper.GetString(KeyRedisURL),
		DynamoDBTable:        viper.GetString(KeyDynamoDBTable),
		RateLimitRPS:         viper.GetFloat64(KeyRateLimitRPS),
		RateLimitBurst:       viper.GetInt(KeyRateLimitBurst),
		CORSOrigins:          splitList(viper.GetStringSlice(KeyCORSOrigins)),
		DisabledTools:        splitList(viper.GetStringSlice(KeyDisabledTools)),
		OTelEnabled:          viper.GetBool(KeyOTelEnabled),
		OTelExporter:         viper.GetString(KeyOTelExporter),
		OTelEndpoint:         viper.GetString(KeyOTelEndpoint),
	}

	if cfg.VaultKey == "" {
		cfg.VaultKey = deriveDefaultKey(cfg.DataDir, "vault-encryption")
		cfg.usingDefaultVaultKey = true
	}
	if cfg.AuditSigningKey == "" {
		cfg.AuditSigningKey = deriveDefaultKey(cfg.DataDir, "audit-signing")
		cfg.usingDefaultSigningKey = true
	}
	if cfg.AuditSealKey == "" {
		cfg.AuditSealKey = deriveDefaultKey(cfg.DataDir, "audit-sealing")
		cfg.usingDefaultSealKey = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".checkoutly"
	}
	return filepath.Join(home, ".checkoutly")
}

// splitList accepts YAML lists as well as comma-separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// deriveDefaultKey produces a deterministic 64-hex-character fallback key
// from the data directory and a salt. Not cryptographically strong; it only
// lets a fresh checkout run while still encrypting at rest.
func deriveDefaultKey(dataDir, salt string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("checkoutly:%s:%s", dataDir, salt)))
	return hex.EncodeToString(h[:])
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) validate() error {
	if err := structValidator.Struct(c); err != nil {
		return err
	}
	if err := validateAESKey(KeyVaultKey, c.VaultKey); err != nil {
		return err
	}
	if err := validateAESKey(KeyAuditSealKey, c.AuditSealKey); err != nil {
		return err
	}
	if err := validateSigningKey(c.AuditSigningKey); err != nil {
		return err
	}
	switch {
	case c.StorageBackend == "postgrest" && c.PostgRESTURL == "":
		return fmt.Errorf("%s is required when %s is postgrest", KeyPostgRESTURL, KeyStorageBackend)
	case c.InventoryBackend == "postgrest" && c.PostgRESTURL == "":
		return fmt.Errorf("%s is required when %s is postgrest", KeyPostgRESTURL, KeyInventoryBackend)
	case c.InventoryBackend == "postgres" && c.InventoryDSN == "":
		return fmt.Errorf("%s is required when %s is postgres", KeyInventoryDSN, KeyInventoryBackend)
	case c.SessionBackend == "redis" && c.RedisURL == "":
		return fmt.Errorf("%s is required when %s is redis", KeyRedisURL, KeySessionBackend)
	case c.SessionBackend == "dynamodb" && c.DynamoDBTable == "":
		return fmt.Errorf("%s is required when %s is dynamodb", KeyDynamoDBTable, KeySessionBackend)
	}
	return nil
}

// validateAESKey accepts either 32 raw bytes or 64 hex characters.
func validateAESKey(name, key string) error {
	if _, err := cryptoutil.ResolveKey(key); err != nil {
		return fmt.Errorf("%s must be exactly 32 bytes or 64 hex characters (got %d); set %s_%s",
			name, len(key), EnvPrefix, strings.ToUpper(name))
	}
	return nil
}

// validateSigningKey accepts either >=32 raw bytes or >=64 hex characters.
// Hex is checked first so that a hex key is validated as hex.
func validateSigningKey(key string) error {
	n := len(key)
	if n >= 64 && n%2 == 0 && cryptoutil.IsHexString(key) {
		decoded, err := hex.DecodeString(key)
		if err != nil || len(decoded) < 32 {
			return fmt.Errorf("audit_signing_key hex must decode to at least 32 bytes: %w", err)
		}
		return nil
	}
	if n >= 32 {
		return nil
	}
	return fmt.Errorf("audit_signing_key must be at least 32 bytes or 64+ hex characters (got %d); set CHECKOUTLY_AUDIT_SIGNING_KEY", n)
}
