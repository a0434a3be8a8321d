// Package main is the entry point for the pipeline-builder CLI application.
// pipeline-builder detects the language ecosystem of a repository and prints
// a complete CI/CD build workflow for it.
package main

import (
	"context"
	"io"
	"os"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/logger"

	"github.com/MyCarrier-DevOps/pipeline-builder/cmd"
	logadapter "github.com/MyCarrier-DevOps/pipeline-builder/internal/adapters/logger"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/adapters/output"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/adapters/repo"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/adapters/store"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/builders"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/infrastructure/config"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/usecases"
)

func main() {
	// Wire up production dependencies
	deps := &cmd.Dependencies{
		// The zap logger reads LOG_LEVEL when built, so it is created after
		// the command has applied --verbose.
		LoggerFactory: func() cmd.Logger {
			return logadapter.NewZapAdapter(logger.NewZapLoggerFromConfig())
		},

		ConfigLoader: func(ctx context.Context) (*cmd.AppConfig, error) {
			cfg, err := config.Load(ctx)
			if err != nil {
				return nil, err
			}
			return appConfigFrom(cfg), nil
		},

		RepoClientFactory: openRepository,

		AuditorFactory: openAuditor,

		ResolverFactory: func(auditor domain.AuditRecorder, log cmd.Logger) domain.Resolver {
			if auditor == nil {
				auditor = store.NopAuditor{}
			}
			return usecases.NewBuilderResolver(log, auditor, builders.Default()...)
		},

		BuilderLookup: builders.ByEcosystem,

		OutputWriterFactory: func(out io.Writer) cmd.OutputWriter {
			return output.NewWriterWithOutput(out)
		},

		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	cmd.SetDefaultDependencies(deps)
	cmd.Execute()
}

// appConfigFrom maps loaded configuration onto the command's view of it.
func appConfigFrom(cfg *config.Config) *cmd.AppConfig {
	return &cmd.AppConfig{
		RepoConfig: repo.GitHubOptions{
			Token:    cfg.GitHub.Token,
			Username: cfg.GitHub.Username,
			Password: cfg.GitHub.Password,
			BaseURL:  cfg.GitHub.BaseURL,
			RetryMax: cfg.RetryMax,
		},
		AuditConfig: store.Options{
			Addr:        cfg.Audit.Addr,
			Database:    cfg.Audit.Database,
			Table:       cfg.Audit.Table,
			Username:    cfg.Audit.Username,
			Password:    cfg.Audit.Password,
			Secure:      cfg.Audit.Secure,
			DialTimeout: cfg.Audit.DialTimeout,
		},
		AuditEnabled:   cfg.Audit.Enabled,
		Defaults:       cfg.Defaults.BuildParameters(),
		RequestTimeout: cfg.RequestTimeout,
		LogLevel:       cfg.LogLevel,
		LogAppName:     cfg.LogAppName,
	}
}

func openRepository(
	ctx context.Context,
	cfg *cmd.AppConfig,
	req cmd.RepoRequest,
	log cmd.Logger,
) (domain.RepoClient, error) {
	opts, ok := cfg.RepoConfig.(repo.GitHubOptions)
	if !ok {
		return nil, newConfigTypeError("repo.GitHubOptions")
	}

	// Repository adapters log with the request bound.
	if za, ok := log.(*logadapter.ZapAdapter); ok {
		log = za.With(map[string]any{"repository": req.Location, "client": req.Client})
	}

	client, err := repo.Open(ctx, repo.Request{
		Location: req.Location,
		Host:     repo.Host(req.Client),
		Ref:      req.Ref,
		GitHub:   opts,
	}, log)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func openAuditor(ctx context.Context, cfg *cmd.AppConfig, _ cmd.Logger) (domain.AuditRecorder, error) {
	opts, ok := cfg.AuditConfig.(store.Options)
	if !ok {
		return nil, newConfigTypeError("store.Options")
	}

	auditor, err := store.NewClickHouseAuditor(ctx, opts)
	if err != nil {
		return nil, err
	}
	return auditor, nil
}

func newConfigTypeError(expected string) error {
	return &configTypeError{expected: expected}
}

// configTypeError is returned when configuration type assertion fails.
type configTypeError struct {
	expected string
}

func (e *configTypeError) Error() string {
	return "invalid configuration type: expected " + e.expected
}
