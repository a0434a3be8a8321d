package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
)

// DefaultMemoEntries bounds the number of probe results kept per request.
const DefaultMemoEntries = 4096

// MemoClient decorates a RepoClient with a probe cache. Detection and
// assembly often ask for the same manifest several times; each answer is
// fetched from the host once. Access failures are never cached.
type MemoClient struct {
	inner domain.RepoClient
	cache *ristretto.Cache
}

var _ domain.RepoClient = (*MemoClient)(nil)

// cached file lookup result; missing marks ErrFileNotFound.
type fileEntry struct {
	data    []byte
	missing bool
}

type nameEntry struct {
	name string
	ok   bool
}

// NewMemoClient wraps inner. maxEntries <= 0 uses DefaultMemoEntries.
func NewMemoClient(inner domain.RepoClient, maxEntries int64) (*MemoClient, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating probe cache: %w", err)
	}
	return &MemoClient{inner: inner, cache: cache}, nil
}

// store adds an entry and waits until it is visible to Get.
func (m *MemoClient) store(key string, value interface{}) {
	if m.cache.Set(key, value, 1) {
		m.cache.Wait()
	}
}

func (m *MemoClient) TestFile(ctx context.Context, path string) (bool, error) {
	key := "test:" + path
	if v, ok := m.cache.Get(key); ok {
		return v.(bool), nil
	}
	if v, ok := m.cache.Get("file:" + path); ok {
		return !v.(fileEntry).missing, nil
	}

	exists, err := m.inner.TestFile(ctx, path)
	if err != nil {
		return false, err
	}
	m.store(key, exists)
	return exists, nil
}

func (m *MemoClient) GetFileContents(ctx context.Context, path string) ([]byte, error) {
	key := "file:" + path
	if v, ok := m.cache.Get(key); ok {
		entry := v.(fileEntry)
		if entry.missing {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrFileNotFound)
		}
		return append([]byte(nil), entry.data...), nil
	}

	data, err := m.inner.GetFileContents(ctx, path)
	switch {
	case errors.Is(err, domain.ErrFileNotFound):
		m.store(key, fileEntry{missing: true})
		return nil, err
	case err != nil:
		return nil, err
	}
	m.store(key, fileEntry{data: append([]byte(nil), data...)})
	return data, nil
}

func (m *MemoClient) FindFiles(ctx context.Context, pattern string) ([]string, error) {
	key := "glob:" + pattern
	if v, ok := m.cache.Get(key); ok {
		return append([]string(nil), v.([]string)...), nil
	}

	matches, err := m.inner.FindFiles(ctx, pattern)
	if err != nil {
		return nil, err
	}
	m.store(key, append([]string(nil), matches...))
	return matches, nil
}

func (m *MemoClient) GetRepoName(ctx context.Context) (string, bool) {
	const key = "name"
	if v, ok := m.cache.Get(key); ok {
		entry := v.(nameEntry)
		return entry.name, entry.ok
	}

	name, ok := m.inner.GetRepoName(ctx)
	m.store(key, nameEntry{name: name, ok: ok})
	return name, ok
}

// Close releases the cache.
func (m *MemoClient) Close() {
	m.cache.Close()
}
