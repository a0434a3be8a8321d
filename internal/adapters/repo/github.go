package repo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/go-github/v75/github"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
)

// GitHubOptions configures a GitHubClient.
type GitHubOptions struct {
	// Token authenticates with a bearer token. Takes precedence over Username.
	Token string

	// Username and Password authenticate with HTTP basic auth.
	Username string
	Password string

	// BaseURL overrides the API endpoint, e.g. for GitHub Enterprise.
	BaseURL string

	// Ref is the branch, tag or SHA to read. Empty means the default branch.
	Ref string

	// RetryMax bounds retries of transient HTTP failures.
	RetryMax int

	// RetryWaitMin and RetryWaitMax bound the backoff between retries.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// GitHubClient implements domain.RepoClient over the GitHub REST API.
type GitHubClient struct {
	gh     *github.Client
	loc    Location
	ref    string
	logger Logger

	treeOnce sync.Once
	tree     []string
	treeErr  error
}

var _ domain.RepoClient = (*GitHubClient)(nil)

// NewGitHubClient creates a client for location (owner/repo or a GitHub URL).
// Transient failures (connection errors, 5xx, 429) are retried with bounded
// exponential backoff before surfacing as a RepoAccessError.
func NewGitHubClient(location string, opts GitHubOptions, log Logger) (*GitHubClient, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, domain.NewRepoAccessError("Open", location, err)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.Logger = &leveledLogger{logger: log}

	httpClient := rc.StandardClient()
	if opts.Token == "" && opts.Username != "" {
		basic := &github.BasicAuthTransport{
			Username:  opts.Username,
			Password:  opts.Password,
			Transport: httpClient.Transport,
		}
		httpClient = basic.Client()
	}

	gh := github.NewClient(httpClient)
	if opts.Token != "" {
		gh = gh.WithAuthToken(opts.Token)
	}
	if opts.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL %q: %w", opts.BaseURL, err)
		}
		gh.BaseURL = base
	}

	return &GitHubClient{
		gh:     gh,
		loc:    loc,
		ref:    opts.Ref,
		logger: log,
	}, nil
}

func isNotFound(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

// TestFile reports whether path is a file. Directories report false.
func (c *GitHubClient) TestFile(ctx context.Context, path string) (bool, error) {
	file, _, resp, err := c.gh.Repositories.GetContents(ctx, c.loc.Owner, c.loc.Name, path,
		&github.RepositoryContentGetOptions{Ref: c.ref})
	if isNotFound(resp) {
		return false, nil
	}
	if err != nil {
		return false, domain.NewRepoAccessError("TestFile", path, err)
	}

	c.logger.Debug(ctx, "probed file", map[string]interface{}{
		"repository": c.loc.String(),
		"path":       path,
		"exists":     file != nil,
	})
	return file != nil, nil
}

// GetFileContents returns the decoded content of path.
func (c *GitHubClient) GetFileContents(ctx context.Context, path string) ([]byte, error) {
	file, _, resp, err := c.gh.Repositories.GetContents(ctx, c.loc.Owner, c.loc.Name, path,
		&github.RepositoryContentGetOptions{Ref: c.ref})
	if isNotFound(resp) {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrFileNotFound)
	}
	if err != nil {
		return nil, domain.NewRepoAccessError("GetFileContents", path, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%s is a directory: %w", path, domain.ErrFileNotFound)
	}

	// Files over 1 MB come back without content; read the blob instead.
	if file.GetEncoding() == "none" {
		return c.getBlob(ctx, path, file.GetSHA())
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, domain.NewRepoAccessError("GetFileContents", path, err)
	}
	return []byte(content), nil
}

func (c *GitHubClient) getBlob(ctx context.Context, path, sha string) ([]byte, error) {
	if sha == "" {
		return nil, domain.NewRepoAccessError("GetFileContents", path, fmt.Errorf("no blob sha for %s", path))
	}
	data, _, err := c.gh.Git.GetBlobRaw(ctx, c.loc.Owner, c.loc.Name, sha)
	if err != nil {
		return nil, domain.NewRepoAccessError("GetFileContents", path, err)
	}
	c.logger.Debug(ctx, "read large file from blob", map[string]interface{}{
		"repository": c.loc.String(),
		"path":       path,
		"bytes":      len(data),
	})
	return data, nil
}

// FindFiles lists the repository tree once and matches pattern against it.
func (c *GitHubClient) FindFiles(ctx context.Context, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, &domain.PreconditionError{Op: "FindFiles", Reason: "invalid pattern " + pattern}
	}

	paths, err := c.listTree(ctx)
	if err != nil {
		return nil, err
	}

	var matches []string
	for _, p := range paths {
		if ok, _ := doublestar.Match(pattern, p); ok {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// listTree returns every blob path of the ref, sorted.
func (c *GitHubClient) listTree(ctx context.Context) ([]string, error) {
	c.treeOnce.Do(func() {
		sha := c.ref
		if sha == "" {
			sha = "HEAD"
		}
		tree, _, err := c.gh.Git.GetTree(ctx, c.loc.Owner, c.loc.Name, sha, true)
		if err != nil {
			c.treeErr = domain.NewRepoAccessError("FindFiles", c.loc.String(), err)
			return
		}
		if tree.GetTruncated() {
			c.logger.Warn(ctx, "repository tree truncated, glob results may be incomplete", map[string]interface{}{
				"repository": c.loc.String(),
				"entries":    len(tree.Entries),
			})
		}
		for _, entry := range tree.Entries {
			if entry.GetType() == "blob" {
				c.tree = append(c.tree, entry.GetPath())
			}
		}
		sort.Strings(c.tree)
	})
	return c.tree, c.treeErr
}

// GetRepoName returns the repository name reported by the API, or the name
// parsed from the location when metadata cannot be fetched.
func (c *GitHubClient) GetRepoName(ctx context.Context) (string, bool) {
	repository, _, err := c.gh.Repositories.Get(ctx, c.loc.Owner, c.loc.Name)
	if err != nil {
		c.logger.Debug(ctx, "repository metadata unavailable, using location name", map[string]interface{}{
			"repository": c.loc.String(),
			"error":      err.Error(),
		})
		return c.loc.Name, c.loc.Name != ""
	}
	if name := repository.GetName(); name != "" {
		return name, true
	}
	return c.loc.Name, c.loc.Name != ""
}

// leveledLogger bridges retryablehttp logging to the adapter Logger.
type leveledLogger struct {
	logger Logger
}

var _ retryablehttp.LeveledLogger = (*leveledLogger)(nil)

func toFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(context.Background(), msg, nil, toFields(keysAndValues))
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(context.Background(), msg, toFields(keysAndValues))
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(context.Background(), msg, toFields(keysAndValues))
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(context.Background(), msg, toFields(keysAndValues))
}
