// Package cmd provides the CLI commands for pipeline-builder.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/usecases"
)

// Logger defines the logging interface used by the command.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// OutputWriter renders command results.
type OutputWriter interface {
	domain.PipelineWriter

	// WriteEcosystem writes the name of the selected ecosystem.
	WriteEcosystem(eco domain.Ecosystem) error
}

// RepoRequest identifies the repository a command reads.
type RepoRequest struct {
	// Location is a local path, a clone URL or owner/name.
	Location string

	// Client is the --client value: auto, github or git.
	Client string

	// Ref is the branch, tag or SHA to read.
	Ref string
}

// Dependencies holds all injectable dependencies for the command.
// This enables testing by allowing mock implementations to be injected.
type Dependencies struct {
	// LoggerFactory creates a logger instance. It is called after --verbose
	// has been applied to the environment.
	LoggerFactory func() Logger

	// ConfigLoader loads application configuration.
	ConfigLoader func(ctx context.Context) (*AppConfig, error)

	// RepoClientFactory opens the repository named by req.
	RepoClientFactory func(ctx context.Context, cfg *AppConfig, req RepoRequest, log Logger) (domain.RepoClient, error)

	// AuditorFactory creates the audit sink. Optional; only called when
	// auditing is enabled.
	AuditorFactory func(ctx context.Context, cfg *AppConfig, log Logger) (domain.AuditRecorder, error)

	// ResolverFactory creates a Resolver. auditor may be nil.
	ResolverFactory func(auditor domain.AuditRecorder, log Logger) domain.Resolver

	// BuilderLookup returns the builder for an ecosystem. Required only
	// when --ecosystem is used.
	BuilderLookup func(eco domain.Ecosystem) (domain.PipelineBuilder, bool)

	// OutputWriterFactory creates an OutputWriter writing to out.
	OutputWriterFactory func(out io.Writer) OutputWriter

	// Stdout is the writer for command results.
	Stdout io.Writer

	// Stderr is the writer for standard error (for warnings/errors).
	Stderr io.Writer
}

// AppConfig holds application configuration loaded by ConfigLoader.
type AppConfig struct {
	// RepoConfig is passed to the RepoClientFactory.
	RepoConfig any

	// AuditConfig is passed to the AuditorFactory.
	AuditConfig any

	// AuditEnabled turns on audit recording of generated pipelines.
	AuditEnabled bool

	// Defaults fill build parameters the caller leaves empty.
	Defaults domain.BuildParameters

	// RequestTimeout bounds one command, repository access included.
	RequestTimeout time.Duration

	// LogLevel is the log level setting.
	LogLevel string

	// LogAppName is the application name for logging.
	LogAppName string
}

// options holds the command-line flags of one command tree.
type options struct {
	client    string
	ref       string
	ecosystem string
	verbose   bool
	params    domain.BuildParameters
}

// defaultDeps holds the production dependencies.
// This is set by the production wiring in main or via SetDefaultDependencies.
var defaultDeps *Dependencies

// SetDefaultDependencies sets the default dependencies for production use.
// This should be called from main() before Execute().
func SetDefaultDependencies(deps *Dependencies) {
	defaultDeps = deps
}

// NewRootCmd creates the root command for pipeline-builder.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithDeps(defaultDeps)
}

// NewRootCmdWithDeps creates the root command with explicit dependencies.
// This is the primary constructor that enables testing via dependency injection.
func NewRootCmdWithDeps(deps *Dependencies) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "pipeline-builder [repository]",
		Short: "Generate a CI/CD build pipeline for a source repository",
		Long: `pipeline-builder inspects a repository, detects its language ecosystem and
prints a complete GitHub Actions build workflow to stdout.

The repository may be a local checkout, an owner/name GitHub shorthand or a
clone URL. Builders are evaluated in a fixed priority order (Maven, Gradle,
Node.js, PHP, Python, Go, Ruby, .NET Core) and the first match wins; anything
unrecognized gets a generic package-and-publish pipeline.

Examples:
  # Generate a workflow for the current directory
  pipeline-builder

  # Generate a workflow for a GitHub repository at a branch
  pipeline-builder acme/payments --ref develop

  # Override the deployment project and channel
  pipeline-builder acme/payments --octopus-project Payments --release-channel Staging

  # Require a Gradle build instead of detecting one
  pipeline-builder acme/payments --ecosystem gradle

  # Only print the detected ecosystem
  pipeline-builder detect ./services/orders`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, deps, opts)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.client, "client", "auto", "Repository client: auto, github or git")
	pf.StringVar(&opts.ref, "ref", "", "Branch, tag or SHA to read (default: the default branch)")
	pf.StringVar(&opts.ecosystem, "ecosystem", "",
		"Only consider this builder (maven, gradle, nodejs, php, python, go, ruby, dotnetcore, generic)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose/debug logging")

	f := rootCmd.Flags()
	f.StringVar(&opts.params.TestReportPath, "test-report-path", "",
		"Path or glob of test result files (default: ecosystem specific)")
	f.StringVar(&opts.params.OctopusProject, "octopus-project", "",
		"Octopus Deploy project (default: the repository name)")
	f.StringVar(&opts.params.ReleaseChannel, "release-channel", "",
		"Octopus Deploy release channel (default: Development)")
	f.StringVar(&opts.params.PackageGlob, "package-glob", "",
		"Glob of packages pushed to Octopus Deploy (default: <name>.<version>.zip)")

	rootCmd.AddCommand(newDetectCmd(deps, opts))

	return rootCmd
}

// session carries the per-invocation state shared by the commands.
type session struct {
	ctx      context.Context
	cancel   context.CancelFunc
	log      Logger
	cfg      *AppConfig
	client   domain.RepoClient
	location string
}

// openSession applies flags, loads configuration and opens the repository.
func openSession(cmd *cobra.Command, args []string, deps *Dependencies, opts *options) (*session, error) {
	if deps == nil {
		return nil, errors.New("dependencies not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	location := "."
	if len(args) > 0 {
		location = args[0]
	}

	stderr := deps.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	// Set log level based on verbose flag (best-effort)
	if opts.verbose {
		if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
			writeWarningf(stderr, "warning: could not set log level: %v\n", err)
		}
	}

	log := deps.LoggerFactory()

	cfg, err := deps.ConfigLoader(ctx)
	if err != nil {
		log.Error(ctx, "failed to load configuration", err, nil)
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	var cancel context.CancelFunc
	if cfg.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	ctx = usecases.WithRepository(ctx, location)

	log.Info(ctx, "opening repository", map[string]interface{}{
		"location": location,
		"client":   opts.client,
		"ref":      opts.ref,
	})

	client, err := deps.RepoClientFactory(ctx, cfg, RepoRequest{
		Location: location,
		Client:   opts.client,
		Ref:      opts.ref,
	}, log)
	if err != nil {
		cancel()
		log.Error(ctx, "failed to open repository", err, map[string]interface{}{
			"location": location,
		})
		return nil, describeError(err, location, cfg.RequestTimeout)
	}

	return &session{
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
		cfg:      cfg,
		client:   client,
		location: location,
	}, nil
}

// close releases the repository client and the request context.
func (s *session) close() {
	switch c := s.client.(type) {
	case io.Closer:
		if err := c.Close(); err != nil {
			s.log.Warn(s.ctx, "failed to close repository client", map[string]interface{}{
				"error": err.Error(),
			})
		}
	case interface{ Close() }:
		c.Close()
	}
	s.cancel()
}

// openAuditor returns the configured audit sink, or nil when auditing is
// disabled or unavailable. Audit problems never fail a command.
func (s *session) openAuditor(deps *Dependencies) domain.AuditRecorder {
	if !s.cfg.AuditEnabled || deps.AuditorFactory == nil {
		return nil
	}
	auditor, err := deps.AuditorFactory(s.ctx, s.cfg, s.log)
	if err != nil {
		s.log.Warn(s.ctx, "audit sink unavailable, continuing without auditing", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return auditor
}

// resolver returns the resolver for this invocation. With --ecosystem only
// the named builder is considered and its detection rule must still match.
func (s *session) resolver(deps *Dependencies, opts *options, auditor domain.AuditRecorder) (domain.Resolver, error) {
	if strings.TrimSpace(opts.ecosystem) == "" {
		return deps.ResolverFactory(auditor, s.log), nil
	}

	eco, err := domain.ParseEcosystem(opts.ecosystem)
	if err != nil {
		return nil, err
	}
	if deps.BuilderLookup == nil {
		return nil, errors.New("builder lookup not configured")
	}
	builder, ok := deps.BuilderLookup(eco)
	if !ok {
		return nil, &domain.PreconditionError{
			Op:     "Ecosystem",
			Reason: fmt.Sprintf("no builder registered for %s", eco),
		}
	}
	return usecases.NewBuilderResolver(s.log, auditor, builder), nil
}

// runGenerate resolves the repository's builder and writes its pipeline.
func runGenerate(cmd *cobra.Command, args []string, deps *Dependencies, opts *options) error {
	s, err := openSession(cmd, args, deps, opts)
	if err != nil {
		return err
	}
	defer s.close()

	auditor := s.openAuditor(deps)
	if auditor != nil {
		defer func() {
			if closeErr := auditor.Close(); closeErr != nil {
				s.log.Warn(s.ctx, "failed to close audit sink", map[string]interface{}{
					"error": closeErr.Error(),
				})
			}
		}()
	}

	resolver, err := s.resolver(deps, opts, auditor)
	if err != nil {
		return describeError(err, s.location, s.cfg.RequestTimeout)
	}

	params := opts.params.WithDefaults(s.cfg.Defaults)
	pipeline, err := resolver.Generate(s.ctx, s.client, params)
	if err != nil {
		s.log.Error(s.ctx, "failed to generate pipeline", err, map[string]interface{}{
			"location": s.location,
		})
		return describeError(err, s.location, s.cfg.RequestTimeout)
	}

	writer := deps.OutputWriterFactory(stdout(deps))
	if err := writer.WritePipeline(pipeline); err != nil {
		s.log.Error(s.ctx, "failed to write output", err, nil)
		return fmt.Errorf("output error: %w", err)
	}

	s.log.Info(s.ctx, "pipeline generation complete", map[string]interface{}{
		"location":  s.location,
		"ecosystem": pipeline.Ecosystem.String(),
		"steps":     len(pipeline.Steps()),
	})
	return nil
}

// describeError maps domain failures to short user-facing messages.
// The cause stays wrapped for errors.Is.
func describeError(err error, location string, timeout time.Duration) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("timed out after %s reading %s: %w", timeout, location, err)
	case errors.Is(err, domain.ErrRepoAccess):
		return fmt.Errorf("cannot read repository %s: %w", location, err)
	case errors.Is(err, domain.ErrNoBuilderMatched):
		return fmt.Errorf("no pipeline builder matched repository %s: %w", location, err)
	case errors.Is(err, domain.ErrPrecondition):
		return fmt.Errorf("invalid request: %w", err)
	default:
		return err
	}
}

func stdout(deps *Dependencies) io.Writer {
	if deps.Stdout == nil {
		return os.Stdout
	}
	return deps.Stdout
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// writeWarningf writes a warning message to the given writer.
// This is a best-effort operation; errors are intentionally ignored
// because there is no recovery action if stderr writes fail.
func writeWarningf(w io.Writer, format string, args ...any) {
	_, err := fmt.Fprintf(w, format, args...)
	if err != nil {
		return
	}
}
