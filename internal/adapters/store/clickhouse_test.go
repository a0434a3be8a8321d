package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
)

// mockConn records executed statements.
type mockConn struct {
	queries [][]any
	query   string
	execErr error
	closed  bool
}

func (m *mockConn) Exec(_ context.Context, query string, args ...any) error {
	m.query = query
	m.queries = append(m.queries, args)
	return m.execErr
}

func (m *mockConn) Close() error {
	m.closed = true
	return nil
}

func TestClickHouseAuditor_Record(t *testing.T) {
	// Arrange
	conn := &mockConn{}
	auditor := newClickHouseAuditor(conn, "ci", "pipeline_generations")
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))
	auditor.now = func() time.Time { return fixed }

	// Act
	err := auditor.Record(context.Background(), domain.AuditEntry{
		Repository: "acme/web",
		RepoName:   "web",
		Ecosystem:  domain.EcosystemNodeJS,
		StepCount:  17,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO ci.pipeline_generations (id, created_at, repository, repo_name, ecosystem, step_count) "+
			"VALUES (?, ?, ?, ?, ?, ?)",
		conn.query)
	require.Len(t, conn.queries, 1)
	args := conn.queries[0]
	require.Len(t, args, 6)
	_, err = uuid.Parse(args[0].(string))
	assert.NoError(t, err, "id is a uuid")
	assert.Equal(t, fixed.UTC(), args[1])
	assert.Equal(t, []any{"acme/web", "web", "nodejs", uint32(17)}, args[2:])
}

func TestClickHouseAuditor_RecordUsesFreshIDs(t *testing.T) {
	conn := &mockConn{}
	auditor := newClickHouseAuditor(conn, "ci", "pipeline_generations")

	require.NoError(t, auditor.Record(context.Background(), domain.AuditEntry{}))
	require.NoError(t, auditor.Record(context.Background(), domain.AuditEntry{}))

	require.Len(t, conn.queries, 2)
	assert.NotEqual(t, conn.queries[0][0], conn.queries[1][0])
}

func TestClickHouseAuditor_RecordError(t *testing.T) {
	conn := &mockConn{execErr: errors.New("table does not exist")}
	auditor := newClickHouseAuditor(conn, "ci", "pipeline_generations")

	err := auditor.Record(context.Background(), domain.AuditEntry{Ecosystem: domain.EcosystemGo})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording go generation")
	assert.ErrorIs(t, err, conn.execErr)
}

func TestClickHouseAuditor_Close(t *testing.T) {
	conn := &mockConn{}
	auditor := newClickHouseAuditor(conn, "ci", "pipeline_generations")

	require.NoError(t, auditor.Close())
	assert.True(t, conn.closed)
}

func TestNewClickHouseAuditor_RejectsInvalidIdentifiers(t *testing.T) {
	tests := []struct {
		name     string
		database string
		table    string
	}{
		{name: "empty database", database: "", table: "generations"},
		{name: "injected table", database: "ci", table: "t; DROP TABLE x"},
		{name: "qualified table", database: "ci", table: "other.t"},
		{name: "leading digit", database: "1ci", table: "t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor, err := NewClickHouseAuditor(context.Background(), Options{
				Addr:     []string{"localhost:9000"},
				Database: tt.database,
				Table:    tt.table,
			})

			require.Error(t, err)
			assert.Nil(t, auditor)
			assert.ErrorIs(t, err, domain.ErrPrecondition)
		})
	}
}

func TestNopAuditor(t *testing.T) {
	var auditor domain.AuditRecorder = NopAuditor{}

	assert.NoError(t, auditor.Record(context.Background(), domain.AuditEntry{Repository: "acme/web"}))
	assert.NoError(t, auditor.Close())
}
