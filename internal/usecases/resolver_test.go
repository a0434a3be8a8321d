package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/adapters/repo/repotest"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/builders"
	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
)

// mockLogger records warnings for assertions.
type mockLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *mockLogger) Info(_ context.Context, _ string, _ map[string]interface{})  {}
func (l *mockLogger) Debug(_ context.Context, _ string, _ map[string]interface{}) {}
func (l *mockLogger) Warn(_ context.Context, msg string, _ map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}
func (l *mockLogger) Error(_ context.Context, _ string, _ error, _ map[string]interface{}) {}

// stubBuilder is a PipelineBuilder with a fixed detection answer.
type stubBuilder struct {
	eco      domain.Ecosystem
	accept   bool
	err      error
	pipeline *domain.Pipeline

	mu    sync.Mutex
	calls int
}

func (b *stubBuilder) Ecosystem() domain.Ecosystem { return b.eco }

func (b *stubBuilder) CanBuild(context.Context, domain.RepoClient) (bool, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	return b.accept, b.err
}

func (b *stubBuilder) Build(context.Context, domain.RepoClient, domain.BuildParameters) (*domain.Pipeline, error) {
	return b.pipeline, nil
}

func (b *stubBuilder) evaluated() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// mockAuditor captures recorded entries.
type mockAuditor struct {
	entries []domain.AuditEntry
	err     error
}

func (a *mockAuditor) Record(_ context.Context, entry domain.AuditEntry) error {
	a.entries = append(a.entries, entry)
	return a.err
}

func (a *mockAuditor) Close() error { return nil }

func TestResolve_FirstMatchWins(t *testing.T) {
	// Arrange
	first := &stubBuilder{eco: domain.EcosystemMaven}
	second := &stubBuilder{eco: domain.EcosystemNodeJS, accept: true}
	third := &stubBuilder{eco: domain.EcosystemGeneric, accept: true}
	resolver := NewBuilderResolver(&mockLogger{}, nil, first, second, third)

	// Act
	got, err := resolver.Resolve(context.Background(), repotest.New("svc", nil))

	// Assert
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, 1, first.evaluated())
	assert.Equal(t, 0, third.evaluated(), "evaluation stops at the first match")
}

func TestResolve_NoMatch(t *testing.T) {
	log := &mockLogger{}
	resolver := NewBuilderResolver(log, nil, &stubBuilder{eco: domain.EcosystemMaven})

	got, err := resolver.Resolve(context.Background(), repotest.New("svc", nil))

	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrNoBuilderMatched)
	assert.Len(t, log.warnings, 1)
}

func TestResolve_ProbeFailureStopsEvaluation(t *testing.T) {
	cause := domain.NewRepoAccessError("TestFile", "pom.xml", errors.New("401 Unauthorized"))
	failing := &stubBuilder{eco: domain.EcosystemMaven, err: cause}
	fallback := &stubBuilder{eco: domain.EcosystemGeneric, accept: true}
	resolver := NewBuilderResolver(&mockLogger{}, nil, failing, fallback)

	_, err := resolver.Resolve(context.Background(), repotest.New("svc", nil))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRepoAccess)
	assert.Equal(t, 0, fallback.evaluated(), "errors are not treated as a non-match")
}

func TestResolve_DefaultRegistry(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  domain.Ecosystem
	}{
		{name: "node only", files: map[string]string{"package.json": "{}"}, want: domain.EcosystemNodeJS},
		{name: "maven beats node", files: map[string]string{"pom.xml": "", "package.json": "{}"}, want: domain.EcosystemMaven},
		{name: "nothing recognized", files: map[string]string{"README.md": ""}, want: domain.EcosystemGeneric},
		{name: "empty repository", files: nil, want: domain.EcosystemGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewBuilderResolver(&mockLogger{}, nil, builders.Default()...)

			got, err := resolver.Resolve(context.Background(), repotest.New("svc", tt.files))

			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Ecosystem())
		})
	}
}

func TestResolve_ConcurrentRequestsAreIndependent(t *testing.T) {
	resolver := NewBuilderResolver(&mockLogger{}, nil, builders.Default()...)
	repos := []struct {
		files map[string]string
		want  domain.Ecosystem
	}{
		{files: map[string]string{"pom.xml": ""}, want: domain.EcosystemMaven},
		{files: map[string]string{"go.mod": "module x\n\ngo 1.22\n"}, want: domain.EcosystemGo},
		{files: map[string]string{"Gemfile": ""}, want: domain.EcosystemRuby},
		{files: nil, want: domain.EcosystemGeneric},
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		repo := repos[i%len(repos)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := resolver.Generate(context.Background(), repotest.New("svc", repo.files), domain.BuildParameters{})
			assert.NoError(t, err)
			if p != nil {
				assert.Equal(t, repo.want, p.Ecosystem)
			}
		}()
	}
	wg.Wait()
}

func TestGenerate_NodeScenarioWithoutName(t *testing.T) {
	auditor := &mockAuditor{}
	resolver := NewBuilderResolver(&mockLogger{}, auditor, builders.Default()...)
	ctx := WithRepository(context.Background(), "acme/web")

	p, err := resolver.Generate(ctx, repotest.New("", map[string]string{"package.json": "{}"}),
		domain.BuildParameters{TestReportPath: "reports/junit.xml"})

	require.NoError(t, err)
	assert.Equal(t, domain.EcosystemNodeJS, p.Ecosystem)
	assert.True(t, p.Steps()[0].IsCheckout())

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, domain.AuditEntry{
		Repository: "acme/web",
		RepoName:   "",
		Ecosystem:  domain.EcosystemNodeJS,
		StepCount:  len(p.Steps()),
	}, auditor.entries[0])
}

func TestGenerate_AuditFailureIsOnlyLogged(t *testing.T) {
	log := &mockLogger{}
	auditor := &mockAuditor{err: errors.New("clickhouse unavailable")}
	resolver := NewBuilderResolver(log, auditor, builders.Default()...)

	p, err := resolver.Generate(context.Background(), repotest.New("svc", nil), domain.BuildParameters{})

	require.NoError(t, err)
	assert.Equal(t, domain.EcosystemGeneric, p.Ecosystem)
	assert.Contains(t, log.warnings, "failed to record pipeline generation")
}

func TestGenerate_PropagatesAccessErrors(t *testing.T) {
	resolver := NewBuilderResolver(&mockLogger{}, nil, builders.Default()...)

	p, err := resolver.Generate(context.Background(), repotest.Failing(errors.New("dial tcp: timeout")),
		domain.BuildParameters{})

	require.Error(t, err)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, domain.ErrRepoAccess)
}

func TestGenerate_RejectsInvalidPipeline(t *testing.T) {
	broken := &stubBuilder{
		eco:    domain.EcosystemGeneric,
		accept: true,
		pipeline: &domain.Pipeline{Jobs: []domain.Job{{
			ID:    "build",
			Steps: []domain.Step{{Run: "make"}},
		}}},
	}
	resolver := NewBuilderResolver(&mockLogger{}, nil, broken)

	_, err := resolver.Generate(context.Background(), repotest.New("svc", nil), domain.BuildParameters{})

	assert.ErrorIs(t, err, domain.ErrInvalidPipeline)
}

func TestBuild_InapplicableBuilderIsPrecondition(t *testing.T) {
	maven := builders.NewMaven()

	_, err := Build(context.Background(), maven, repotest.New("svc", map[string]string{"package.json": "{}"}),
		domain.BuildParameters{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPrecondition)
	var precondition *domain.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, "Build", precondition.Op)
}
