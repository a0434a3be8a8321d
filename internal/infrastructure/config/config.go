// Package config provides configuration loading for the pipeline-builder application.
// Settings are decoded from environment variables; repository and audit
// credentials may additionally be read from HashiCorp Vault.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/vault"
	"github.com/sethvargo/go-envconfig"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
)

// Environment variable names read outside the PIPELINE_BUILDER_ prefix.
const (
	// EnvLogLevel is the log level (debug, info, error).
	EnvLogLevel = "LOG_LEVEL"

	// EnvLogAppName is the application name for log context.
	EnvLogAppName = "LOG_APP_NAME"

	// EnvVaultCredentialsPath is the path in Vault KV where credentials are stored.
	EnvVaultCredentialsPath = "VAULT_CREDENTIALS_PATH"

	// EnvVaultCredentialsMount is the Vault KV mount point (defaults to "secret").
	EnvVaultCredentialsMount = "VAULT_CREDENTIALS_MOUNT"
)

// Default values.
const (
	DefaultLogLevel       = "info"
	DefaultLogAppName     = "pipeline-builder"
	DefaultVaultMount     = "secret"
	DefaultRequestTimeout = 2 * time.Minute
	DefaultRetryMax       = 3
)

// Keys looked up in the Vault credentials secret.
const (
	SecretGitHubToken        = "github_token"
	SecretGitHubUsername     = "github_username"
	SecretGitHubPassword     = "github_password"
	SecretClickHouseUsername = "clickhouse_username"
	SecretClickHousePassword = "clickhouse_password"
)

// Configuration errors.
var (
	// ErrInvalidConfig indicates a setting failed to decode or validate.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrVaultClientFailed indicates failure to create or authenticate with Vault.
	ErrVaultClientFailed = errors.New("failed to create Vault client")

	// ErrVaultSecretNotFound indicates the secret was not found in Vault.
	ErrVaultSecretNotFound = errors.New("credentials not found in Vault")
)

// VaultClient defines the interface for Vault operations.
// This interface allows for dependency injection and testing.
type VaultClient interface {
	// GetKVSecret retrieves a secret from Vault's KV v2 secrets engine.
	GetKVSecret(ctx context.Context, path, mount string) (map[string]interface{}, error)
}

// VaultClientFactory creates a VaultClient using AppRole authentication.
type VaultClientFactory func(ctx context.Context) (VaultClient, error)

// DefaultVaultClientFactory creates a VaultClient using goLibMyCarrier/vault with AppRole auth.
func DefaultVaultClientFactory(ctx context.Context) (VaultClient, error) {
	// Uses: VAULT_ADDRESS, VAULT_ROLE_ID, VAULT_SECRET_ID
	vaultConfig, err := vault.VaultLoadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	client, err := vault.CreateVaultClient(ctx, vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	return client, nil
}

// Config holds all application configuration.
type Config struct {
	// LogLevel is the logging level (debug, info, error).
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// LogAppName is the application name for log context.
	LogAppName string `env:"LOG_APP_NAME, default=pipeline-builder"`

	// RequestTimeout bounds one generation request, detection and build included.
	RequestTimeout time.Duration `env:"PIPELINE_BUILDER_REQUEST_TIMEOUT, default=2m"`

	// RetryMax is the retry budget for remote repository access.
	RetryMax int `env:"PIPELINE_BUILDER_RETRY_MAX, default=3"`

	GitHub   GitHubConfig   `env:",prefix=PIPELINE_BUILDER_GITHUB_"`
	Defaults DefaultsConfig `env:",prefix=PIPELINE_BUILDER_"`
	Audit    AuditConfig    `env:",prefix=PIPELINE_BUILDER_AUDIT_"`
	Vault    VaultConfig    `env:",prefix=VAULT_CREDENTIALS_"`
}

// GitHubConfig holds repository host credentials.
// A token takes precedence over username and password.
type GitHubConfig struct {
	Token    string `env:"TOKEN"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`

	// BaseURL overrides the API endpoint, for GitHub Enterprise.
	BaseURL string `env:"BASE_URL"`
}

// DefaultsConfig holds build parameters applied when the caller leaves them empty.
type DefaultsConfig struct {
	TestReportPath string `env:"TEST_REPORT_PATH"`
	OctopusProject string `env:"OCTOPUS_PROJECT"`
	ReleaseChannel string `env:"RELEASE_CHANNEL"`
	PackageGlob    string `env:"PACKAGE_GLOB"`
}

// BuildParameters converts the defaults to domain parameters.
func (d DefaultsConfig) BuildParameters() domain.BuildParameters {
	return domain.BuildParameters{
		TestReportPath: d.TestReportPath,
		OctopusProject: d.OctopusProject,
		ReleaseChannel: d.ReleaseChannel,
		PackageGlob:    d.PackageGlob,
	}
}

// AuditConfig holds the ClickHouse audit sink settings.
type AuditConfig struct {
	Enabled     bool          `env:"ENABLED, default=false"`
	Addr        []string      `env:"ADDR, default=localhost:9000"`
	Database    string        `env:"DATABASE, default=ci"`
	Table       string        `env:"TABLE, default=pipeline_generations"`
	Username    string        `env:"USERNAME"`
	Password    string        `env:"PASSWORD"`
	Secure      bool          `env:"SECURE, default=false"`
	DialTimeout time.Duration `env:"DIAL_TIMEOUT, default=5s"`
}

// VaultConfig locates the credentials secret. An empty Path disables Vault.
type VaultConfig struct {
	Path  string `env:"PATH"`
	Mount string `env:"MOUNT, default=secret"`
}

// Load loads the application configuration from environment variables.
//
// When VAULT_CREDENTIALS_PATH is set, credentials missing from the
// environment are read from that Vault KV secret. This requires:
//   - VAULT_ADDRESS: Vault server address
//   - VAULT_ROLE_ID: AppRole role ID
//   - VAULT_SECRET_ID: AppRole secret ID
//   - VAULT_CREDENTIALS_MOUNT: KV mount point (optional, defaults to "secret")
func Load(ctx context.Context) (*Config, error) {
	return LoadWithVaultClient(ctx, nil)
}

// LoadWithVaultClient loads configuration using the provided VaultClient factory.
// If vaultClientFactory is nil, DefaultVaultClientFactory is used.
func LoadWithVaultClient(ctx context.Context, vaultClientFactory VaultClientFactory) (*Config, error) {
	return LoadWithLookuper(ctx, envconfig.OsLookuper(), vaultClientFactory)
}

// LoadWithLookuper loads configuration from lookuper instead of the process
// environment. This function enables dependency injection for testing.
func LoadWithLookuper(
	ctx context.Context,
	lookuper envconfig.Lookuper,
	vaultClientFactory VaultClientFactory,
) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if cfg.Vault.Path != "" {
		if err := applyVaultCredentials(ctx, &cfg, vaultClientFactory); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that decode correctly but cannot be used.
func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive, got %s", ErrInvalidConfig, c.RequestTimeout)
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("%w: retry max must not be negative, got %d", ErrInvalidConfig, c.RetryMax)
	}
	if c.Audit.Enabled {
		if len(c.Audit.Addr) == 0 {
			return fmt.Errorf("%w: audit enabled without an address", ErrInvalidConfig)
		}
		if c.Audit.Table == "" {
			return fmt.Errorf("%w: audit enabled without a table", ErrInvalidConfig)
		}
	}
	return nil
}

// applyVaultCredentials fills empty credential fields from the Vault secret.
// Values already present in the environment win.
func applyVaultCredentials(ctx context.Context, cfg *Config, vaultClientFactory VaultClientFactory) error {
	if vaultClientFactory == nil {
		vaultClientFactory = DefaultVaultClientFactory
	}

	client, err := vaultClientFactory(ctx)
	if err != nil {
		return err
	}

	secret, err := client.GetKVSecret(ctx, cfg.Vault.Path, cfg.Vault.Mount)
	if err != nil {
		return fmt.Errorf("%w at path %s: %w", ErrVaultSecretNotFound, cfg.Vault.Path, err)
	}

	fill(&cfg.GitHub.Token, secret, SecretGitHubToken)
	fill(&cfg.GitHub.Username, secret, SecretGitHubUsername)
	fill(&cfg.GitHub.Password, secret, SecretGitHubPassword)
	fill(&cfg.Audit.Username, secret, SecretClickHouseUsername)
	fill(&cfg.Audit.Password, secret, SecretClickHousePassword)
	return nil
}

func fill(dst *string, secret map[string]interface{}, key string) {
	if *dst != "" {
		return
	}
	if v, ok := secret[key].(string); ok {
		*dst = v
	}
}
