// Package repotest provides an in-memory RepoClient for tests.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
)

// Client serves a fixed file set. It counts every probe so tests can assert
// how often a repository was touched.
type Client struct {
	// Name is returned by GetRepoName; empty means unresolvable.
	Name string

	// Err, when set, is returned wrapped in a RepoAccessError by every probe.
	Err error

	mu     sync.Mutex
	files  map[string][]byte
	probes int
}

var _ domain.RepoClient = (*Client)(nil)

// New returns a client holding files (path -> content).
func New(name string, files map[string]string) *Client {
	c := &Client{Name: name, files: make(map[string][]byte, len(files))}
	for path, content := range files {
		c.files[path] = []byte(content)
	}
	return c
}

// Failing returns a client whose probes all fail with err.
func Failing(err error) *Client {
	return &Client{Err: err, files: map[string][]byte{}}
}

// Probes returns the number of TestFile, GetFileContents and FindFiles calls.
func (c *Client) Probes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probes
}

func (c *Client) probe(op, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes++
	if c.Err != nil {
		return domain.NewRepoAccessError(op, path, c.Err)
	}
	return nil
}

func (c *Client) TestFile(_ context.Context, path string) (bool, error) {
	if err := c.probe("TestFile", path); err != nil {
		return false, err
	}
	_, ok := c.files[path]
	return ok, nil
}

func (c *Client) GetFileContents(_ context.Context, path string) ([]byte, error) {
	if err := c.probe("GetFileContents", path); err != nil {
		return nil, err
	}
	data, ok := c.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrFileNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (c *Client) FindFiles(_ context.Context, pattern string) ([]string, error) {
	if err := c.probe("FindFiles", pattern); err != nil {
		return nil, err
	}
	var matches []string
	for path := range c.files {
		ok, err := doublestar.Match(pattern, path)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", domain.ErrPrecondition, pattern, err)
		}
		if ok {
			matches = append(matches, path)
		}
	}
	sort.Strings(matches)
	return matches, nil
}

func (c *Client) GetRepoName(context.Context) (string, bool) {
	return c.Name, c.Name != ""
}
