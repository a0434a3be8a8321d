package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/adapters/repo/repotest"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
)

func TestMemoClient_ProbesHostOnce(t *testing.T) {
	inner := repotest.New("orders", map[string]string{
		"package.json": "{}",
		"src/a.csproj": "<Project/>",
	})
	memo, err := NewMemoClient(inner, 0)
	require.NoError(t, err)
	defer memo.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := memo.TestFile(ctx, "package.json")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = memo.TestFile(ctx, "pom.xml")
		require.NoError(t, err)
		assert.False(t, ok)

		data, err := memo.GetFileContents(ctx, "package.json")
		require.NoError(t, err)
		assert.Equal(t, "{}", string(data))

		_, err = memo.GetFileContents(ctx, "go.mod")
		assert.ErrorIs(t, err, domain.ErrFileNotFound)

		matches, err := memo.FindFiles(ctx, "**/*.csproj")
		require.NoError(t, err)
		assert.Equal(t, []string{"src/a.csproj"}, matches)
	}

	assert.Equal(t, 5, inner.Probes())
}

func TestMemoClient_ContentAnswersExistence(t *testing.T) {
	inner := repotest.New("orders", map[string]string{"pom.xml": "<project/>"})
	memo, err := NewMemoClient(inner, 16)
	require.NoError(t, err)
	defer memo.Close()
	ctx := context.Background()

	_, err = memo.GetFileContents(ctx, "pom.xml")
	require.NoError(t, err)
	ok, err := memo.TestFile(ctx, "pom.xml")
	require.NoError(t, err)

	assert.True(t, ok)
	assert.Equal(t, 1, inner.Probes())
}

func TestMemoClient_ReturnedDataIsIsolated(t *testing.T) {
	inner := repotest.New("orders", map[string]string{"go.mod": "module x"})
	memo, err := NewMemoClient(inner, 16)
	require.NoError(t, err)
	defer memo.Close()
	ctx := context.Background()

	first, err := memo.GetFileContents(ctx, "go.mod")
	require.NoError(t, err)
	first[0] = 'X'

	second, err := memo.GetFileContents(ctx, "go.mod")
	require.NoError(t, err)
	assert.Equal(t, "module x", string(second))
}

func TestMemoClient_DoesNotCacheAccessErrors(t *testing.T) {
	inner := repotest.Failing(errors.New("503 Service Unavailable"))
	memo, err := NewMemoClient(inner, 16)
	require.NoError(t, err)
	defer memo.Close()

	for i := 0; i < 2; i++ {
		_, err := memo.TestFile(context.Background(), "pom.xml")
		assert.ErrorIs(t, err, domain.ErrRepoAccess)
	}
	assert.Equal(t, 2, inner.Probes())
}

func TestMemoClient_RepoName(t *testing.T) {
	memo, err := NewMemoClient(repotest.New("", nil), 16)
	require.NoError(t, err)
	defer memo.Close()

	name, ok := memo.GetRepoName(context.Background())
	assert.False(t, ok)
	assert.Empty(t, name)
}
