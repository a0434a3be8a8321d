// Package usecases contains the application business logic.
// This package orchestrates domain entities and interfaces to fulfill use cases.
package usecases

import (
	"context"
	"fmt"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
)

// Logger defines the logging interface required by the resolver.
// This abstracts the logger dependency to avoid coupling to a specific implementation.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// BuilderResolver selects the first registered builder that accepts a
// repository and generates its pipeline.
// The builder list is fixed at construction and read-only afterwards, so a
// resolver may serve concurrent requests.
type BuilderResolver struct {
	builders []domain.PipelineBuilder
	auditor  domain.AuditRecorder
	logger   Logger
}

var _ domain.Resolver = (*BuilderResolver)(nil)

// NewBuilderResolver creates a resolver over builders in priority order.
// auditor may be nil to disable auditing.
func NewBuilderResolver(
	log Logger,
	auditor domain.AuditRecorder,
	builders ...domain.PipelineBuilder,
) *BuilderResolver {
	return &BuilderResolver{
		builders: append([]domain.PipelineBuilder(nil), builders...),
		auditor:  auditor,
		logger:   log,
	}
}

// Resolve evaluates the builders in order and returns the first whose
// CanBuild is true. Evaluation stops at the first match or the first probe
// failure. Returns domain.ErrNoBuilderMatched when nothing accepts the
// repository.
func (r *BuilderResolver) Resolve(ctx context.Context, client domain.RepoClient) (domain.PipelineBuilder, error) {
	for _, b := range r.builders {
		ok, err := b.CanBuild(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("detecting %s: %w", b.Ecosystem(), err)
		}

		r.logger.Debug(ctx, "evaluated builder", map[string]interface{}{
			"ecosystem": b.Ecosystem().String(),
			"matched":   ok,
		})
		if ok {
			return b, nil
		}
	}

	r.logger.Warn(ctx, "no builder matched repository", map[string]interface{}{
		"builders": len(r.builders),
	})
	return nil, fmt.Errorf("%w: evaluated %d builders", domain.ErrNoBuilderMatched, len(r.builders))
}

// Generate resolves a builder, builds the pipeline and checks its structural
// invariants. A successful generation is recorded with the auditor; audit
// failures are logged and never fail the request.
func (r *BuilderResolver) Generate(
	ctx context.Context,
	client domain.RepoClient,
	params domain.BuildParameters,
) (*domain.Pipeline, error) {
	r.logger.Info(ctx, "starting pipeline generation", nil)

	builder, err := r.Resolve(ctx, client)
	if err != nil {
		return nil, err
	}

	r.logger.Info(ctx, "selected builder", map[string]interface{}{
		"ecosystem": builder.Ecosystem().String(),
	})

	pipeline, err := Build(ctx, builder, client, params)
	if err != nil {
		return nil, err
	}

	name, _ := client.GetRepoName(ctx)
	stepCount := len(pipeline.Steps())
	r.logger.Info(ctx, "pipeline generated", map[string]interface{}{
		"ecosystem":  builder.Ecosystem().String(),
		"repository": name,
		"steps":      stepCount,
	})

	if r.auditor != nil {
		entry := domain.AuditEntry{
			Repository: repositoryFromContext(ctx),
			RepoName:   name,
			Ecosystem:  builder.Ecosystem(),
			StepCount:  stepCount,
		}
		if err := r.auditor.Record(ctx, entry); err != nil {
			r.logger.Warn(ctx, "failed to record pipeline generation", map[string]interface{}{
				"ecosystem": builder.Ecosystem().String(),
				"error":     err.Error(),
			})
		}
	}

	return pipeline, nil
}

// Build runs a specific builder against a repository. The builder's CanBuild
// is checked first; building an inapplicable repository is a
// *domain.PreconditionError.
func Build(
	ctx context.Context,
	builder domain.PipelineBuilder,
	client domain.RepoClient,
	params domain.BuildParameters,
) (*domain.Pipeline, error) {
	ok, err := builder.CanBuild(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("detecting %s: %w", builder.Ecosystem(), err)
	}
	if !ok {
		return nil, &domain.PreconditionError{
			Op:     "Build",
			Reason: fmt.Sprintf("%s builder does not apply to this repository", builder.Ecosystem()),
		}
	}

	pipeline, err := builder.Build(ctx, client, params)
	if err != nil {
		return nil, fmt.Errorf("building %s pipeline: %w", builder.Ecosystem(), err)
	}
	if err := pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("building %s pipeline: %w", builder.Ecosystem(), err)
	}
	return pipeline, nil
}

type repositoryKey struct{}

// WithRepository annotates ctx with the repository location being processed,
// for inclusion in audit records.
func WithRepository(ctx context.Context, location string) context.Context {
	return context.WithValue(ctx, repositoryKey{}, location)
}

func repositoryFromContext(ctx context.Context) string {
	location, _ := ctx.Value(repositoryKey{}).(string)
	return location
}
