// Package repo provides RepoClient adapters for Git hosts and local checkouts.
package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
)

// Logger defines the logging interface for the repository adapters.
// This interface enables dependency injection and testability.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// CloneOptions controls how a remote repository is fetched.
type CloneOptions struct {
	// Ref is the branch, tag or commit hash to read. Empty means the remote HEAD.
	Ref string

	// Auth authenticates the clone. Nil clones anonymously.
	Auth transport.AuthMethod

	// Attempts bounds the number of clone attempts.
	Attempts uint

	// Delay is the initial backoff between attempts.
	Delay time.Duration
}

// Default clone retry settings.
const (
	DefaultCloneAttempts = 3
	DefaultCloneDelay    = time.Second
)

// GoGitClient implements domain.RepoClient over a go-git repository.
// All reads come from the tree of a single resolved commit.
type GoGitClient struct {
	repo     *git.Repository
	tree     *object.Tree
	location string
	logger   Logger
}

var _ domain.RepoClient = (*GoGitClient)(nil)

// OpenGoGitClient opens the repository at a local path.
// A non-empty ref is resolved as a revision (branch, tag or hash).
func OpenGoGitClient(ctx context.Context, path, ref string, log Logger) (*GoGitClient, error) {
	r, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, domain.NewRepoAccessError("Open", path, err)
	}
	return NewGoGitClient(ctx, r, path, ref, log)
}

// CloneGoGitClient clones url into memory with bounded exponential backoff.
// Authentication and missing-repository failures are not retried.
//
// A non-empty ref is fetched shallowly as a branch, then as a tag. Anything
// else (a commit hash) needs the full history and is resolved as a revision.
func CloneGoGitClient(ctx context.Context, url string, opts CloneOptions, log Logger) (*GoGitClient, error) {
	if opts.Attempts == 0 {
		opts.Attempts = DefaultCloneAttempts
	}
	if opts.Delay == 0 {
		opts.Delay = DefaultCloneDelay
	}

	shallow := func(name plumbing.ReferenceName) *git.CloneOptions {
		return &git.CloneOptions{
			URL:           url,
			Auth:          opts.Auth,
			Depth:         1,
			SingleBranch:  true,
			Tags:          git.NoTags,
			ReferenceName: name,
		}
	}

	if opts.Ref == "" {
		r, err := cloneWithRetry(ctx, url, shallow(""), opts, log)
		if err != nil {
			return nil, domain.NewRepoAccessError("Clone", url, err)
		}
		return NewGoGitClient(ctx, r, url, "", log)
	}

	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(opts.Ref),
		plumbing.NewTagReferenceName(opts.Ref),
	} {
		r, err := cloneWithRetry(ctx, url, shallow(name), opts, log)
		switch {
		case err == nil:
			log.Debug(ctx, "cloned repository", map[string]interface{}{
				"location": url,
				"ref":      name.String(),
			})
			// HEAD of a tag clone may point at an annotated tag object.
			if name.IsBranch() {
				return NewGoGitClient(ctx, r, url, "", log)
			}
			return NewGoGitClient(ctx, r, url, name.String(), log)
		case !isMissingRef(err):
			return nil, domain.NewRepoAccessError("Clone", url, err)
		}
	}

	r, err := cloneWithRetry(ctx, url, &git.CloneOptions{
		URL:  url,
		Auth: opts.Auth,
		Tags: git.AllTags,
	}, opts, log)
	if err != nil {
		return nil, domain.NewRepoAccessError("Clone", url, err)
	}
	log.Debug(ctx, "cloned full history", map[string]interface{}{
		"location": url,
		"ref":      opts.Ref,
	})
	return NewGoGitClient(ctx, r, url, opts.Ref, log)
}

func cloneWithRetry(
	ctx context.Context,
	url string,
	cloneOpts *git.CloneOptions,
	opts CloneOptions,
	log Logger,
) (*git.Repository, error) {
	var r *git.Repository
	err := retry.Do(
		func() error {
			var cloneErr error
			r, cloneErr = git.CloneContext(ctx, memory.NewStorage(), nil, cloneOpts)
			return cloneErr
		},
		retry.Context(ctx),
		retry.Attempts(opts.Attempts),
		retry.Delay(opts.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			log.Warn(ctx, "clone failed, retrying", map[string]interface{}{
				"location": url,
				"attempt":  n + 1,
				"error":    err.Error(),
			})
		}),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// isMissingRef reports whether the remote has no reference by that name.
func isMissingRef(err error) bool {
	var noRef git.NoMatchingRefSpecError
	return errors.As(err, &noRef) || errors.Is(err, plumbing.ErrReferenceNotFound)
}

// isTransient reports whether a clone failure is worth retrying.
func isTransient(err error) bool {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, transport.ErrEmptyRemoteRepository),
		errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return !isMissingRef(err)
}

// NewGoGitClient wraps an already opened repository. location is used for
// error messages and name resolution. An empty ref reads HEAD.
func NewGoGitClient(ctx context.Context, r *git.Repository, location, ref string, log Logger) (*GoGitClient, error) {
	var (
		hash *plumbing.Hash
		err  error
	)
	if ref == "" {
		var head *plumbing.Reference
		head, err = r.Head()
		if err == nil {
			h := head.Hash()
			hash = &h
		}
	} else {
		hash, err = r.ResolveRevision(plumbing.Revision(ref))
	}
	if err != nil {
		return nil, domain.NewRepoAccessError("Resolve", location, fmt.Errorf("revision %q: %w", ref, err))
	}

	commit, err := r.CommitObject(*hash)
	if err != nil {
		return nil, domain.NewRepoAccessError("Resolve", location, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, domain.NewRepoAccessError("Resolve", location, err)
	}

	log.Debug(ctx, "resolved repository tree", map[string]interface{}{
		"location": location,
		"commit":   hash.String(),
	})

	return &GoGitClient{
		repo:     r,
		tree:     tree,
		location: location,
		logger:   log,
	}, nil
}

// TestFile reports whether path is a file in the resolved tree.
func (c *GoGitClient) TestFile(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, domain.NewRepoAccessError("TestFile", path, err)
	}
	_, err := c.tree.File(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, object.ErrFileNotFound):
		return false, nil
	default:
		return false, domain.NewRepoAccessError("TestFile", path, err)
	}
}

// GetFileContents returns the blob content of path.
func (c *GoGitClient) GetFileContents(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewRepoAccessError("GetFileContents", path, err)
	}
	f, err := c.tree.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrFileNotFound)
	}
	if err != nil {
		return nil, domain.NewRepoAccessError("GetFileContents", path, err)
	}
	content, err := f.Contents()
	if err != nil {
		return nil, domain.NewRepoAccessError("GetFileContents", path, err)
	}
	return []byte(content), nil
}

// FindFiles walks the tree and returns the sorted paths matching pattern.
func (c *GoGitClient) FindFiles(ctx context.Context, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, &domain.PreconditionError{Op: "FindFiles", Reason: "invalid pattern " + pattern}
	}

	var matches []string
	err := c.tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ok, _ := doublestar.Match(pattern, f.Name); ok {
			matches = append(matches, f.Name)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewRepoAccessError("FindFiles", pattern, err)
	}

	sort.Strings(matches)
	return matches, nil
}

// GetRepoName derives the name from the origin remote URL, falling back to
// the clone location.
func (c *GoGitClient) GetRepoName(ctx context.Context) (string, bool) {
	if remote, err := c.repo.Remote("origin"); err == nil {
		for _, url := range remote.Config().URLs {
			if loc, err := ParseLocation(url); err == nil {
				return loc.Name, true
			}
		}
	}
	if loc, err := ParseLocation(c.location); err == nil && IsRemote(c.location) {
		return loc.Name, true
	}

	c.logger.Debug(ctx, "repository name unavailable", map[string]interface{}{
		"location": c.location,
	})
	return "", false
}
