// Package domain defines the core business entities and interfaces for pipeline-builder.
// This package contains no external dependencies and represents the innermost layer
// of the CLEAN architecture.
package domain

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors for repository probing and pipeline resolution.
var (
	// ErrRepoAccess indicates a transport, authentication or addressing failure
	// while probing a repository. Match with errors.Is; the concrete value is
	// a *RepoAccessError.
	ErrRepoAccess = errors.New("repository access failed")

	// ErrFileNotFound indicates the requested file does not exist in the repository.
	ErrFileNotFound = errors.New("file not found in repository")

	// ErrNoBuilderMatched indicates no registered builder accepted the repository.
	// Unreachable while the generic fallback is registered.
	ErrNoBuilderMatched = errors.New("no pipeline builder matched the repository")

	// ErrPrecondition indicates structurally invalid input from the caller.
	ErrPrecondition = errors.New("precondition violated")

	// ErrInvalidPipeline indicates a generated pipeline broke a structural invariant.
	ErrInvalidPipeline = errors.New("invalid pipeline")
)

// RepoAccessError wraps a failure to reach or read a repository.
type RepoAccessError struct {
	// Op is the RepoClient operation that failed.
	Op string

	// Path is the repository path or location being probed.
	Path string

	// Err is the underlying transport error.
	Err error
}

// NewRepoAccessError creates a RepoAccessError.
func NewRepoAccessError(op, path string, err error) *RepoAccessError {
	return &RepoAccessError{Op: op, Path: path, Err: err}
}

func (e *RepoAccessError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v: %v", e.Op, ErrRepoAccess, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, ErrRepoAccess, e.Err)
}

// Unwrap returns the underlying error.
func (e *RepoAccessError) Unwrap() error {
	return e.Err
}

// Is matches ErrRepoAccess.
func (e *RepoAccessError) Is(target error) bool {
	return target == ErrRepoAccess
}

// PreconditionError reports a programming error in the caller. Step
// constructors panic with it; the resolver returns it.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrPrecondition, e.Reason)
}

// Is matches ErrPrecondition.
func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

// RepoClient is a read-only view of a source repository.
// Instances are created per request and are not shared between requests.
type RepoClient interface {
	// TestFile reports whether path exists. A missing file is (false, nil);
	// only transport, auth or addressing failures return an error wrapping ErrRepoAccess.
	TestFile(ctx context.Context, path string) (bool, error)

	// GetFileContents returns the content of path.
	// Returns an error wrapping ErrFileNotFound when the file is absent.
	GetFileContents(ctx context.Context, path string) ([]byte, error)

	// FindFiles returns the sorted repository paths matching a doublestar glob
	// such as "**/*.csproj".
	FindFiles(ctx context.Context, pattern string) ([]string, error)

	// GetRepoName returns the repository display name, or false when the host
	// cannot resolve one. It never fails.
	GetRepoName(ctx context.Context) (string, bool)
}

// PipelineBuilder detects one ecosystem and assembles its pipeline.
// Implementations are stateless and safe for concurrent use.
type PipelineBuilder interface {
	// Ecosystem identifies the builder.
	Ecosystem() Ecosystem

	// CanBuild reports whether the repository belongs to this ecosystem.
	CanBuild(ctx context.Context, client RepoClient) (bool, error)

	// Build assembles the pipeline. Only valid after CanBuild returned true.
	Build(ctx context.Context, client RepoClient, params BuildParameters) (*Pipeline, error)
}

// Resolver selects a builder for a repository and generates its pipeline.
type Resolver interface {
	// Resolve returns the first registered builder that accepts the repository.
	Resolve(ctx context.Context, client RepoClient) (PipelineBuilder, error)

	// Generate resolves a builder and builds the pipeline.
	Generate(ctx context.Context, client RepoClient, params BuildParameters) (*Pipeline, error)
}

// PipelineWriter renders a pipeline to an output destination.
type PipelineWriter interface {
	// WritePipeline serializes the pipeline.
	WritePipeline(p *Pipeline) error
}

// AuditRecorder stores a record of each generated pipeline.
type AuditRecorder interface {
	// Record stores the entry.
	Record(ctx context.Context, entry AuditEntry) error

	// Close releases any resources held by the recorder.
	Close() error
}
