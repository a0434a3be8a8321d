// Package store provides adapters for the pipeline generation audit trail.
package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
)

const defaultUsername = "default"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options configures the ClickHouse audit sink.
type Options struct {
	Addr        []string
	Database    string
	Table       string
	Username    string
	Password    string
	Secure      bool
	DialTimeout time.Duration
}

// conn is the subset of the ClickHouse driver connection the auditor needs.
type conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Close() error
}

// ClickHouseAuditor records one row per generated pipeline.
// It implements domain.AuditRecorder.
type ClickHouseAuditor struct {
	conn   conn
	insert string
	now    func() time.Time
}

var _ domain.AuditRecorder = (*ClickHouseAuditor)(nil)

// NewClickHouseAuditor opens a connection and verifies it with a ping.
func NewClickHouseAuditor(ctx context.Context, opts Options) (*ClickHouseAuditor, error) {
	if err := validateTarget(opts.Database, opts.Table); err != nil {
		return nil, err
	}

	username := opts.Username
	if username == "" {
		username = defaultUsername
	}
	chOpts := &clickhouse.Options{
		Addr: opts.Addr,
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: username,
			Password: opts.Password,
		},
		DialTimeout: opts.DialTimeout,
	}
	if opts.Secure {
		chOpts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	c, err := clickhouse.Open(chOpts)
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	return newClickHouseAuditor(c, opts.Database, opts.Table), nil
}

func newClickHouseAuditor(c conn, database, table string) *ClickHouseAuditor {
	return &ClickHouseAuditor{
		conn: c,
		insert: fmt.Sprintf(
			"INSERT INTO %s.%s (id, created_at, repository, repo_name, ecosystem, step_count) VALUES (?, ?, ?, ?, ?, ?)",
			database, table,
		),
		now: time.Now,
	}
}

func validateTarget(database, table string) error {
	for _, name := range []string{database, table} {
		if !identifier.MatchString(name) {
			return &domain.PreconditionError{
				Op:     "NewClickHouseAuditor",
				Reason: fmt.Sprintf("invalid identifier %q", name),
			}
		}
	}
	return nil
}

// Record inserts entry with a fresh id and the current UTC time.
func (a *ClickHouseAuditor) Record(ctx context.Context, entry domain.AuditEntry) error {
	err := a.conn.Exec(ctx, a.insert,
		uuid.NewString(),
		a.now().UTC(),
		entry.Repository,
		entry.RepoName,
		entry.Ecosystem.String(),
		uint32(entry.StepCount),
	)
	if err != nil {
		return fmt.Errorf("recording %s generation: %w", entry.Ecosystem, err)
	}
	return nil
}

// Close releases the connection.
func (a *ClickHouseAuditor) Close() error {
	return a.conn.Close()
}

// NopAuditor discards entries. It stands in for the audit sink when
// auditing is disabled or the sink could not be opened.
type NopAuditor struct{}

var _ domain.AuditRecorder = NopAuditor{}

// Record does nothing.
func (NopAuditor) Record(context.Context, domain.AuditEntry) error { return nil }

// Close does nothing.
func (NopAuditor) Close() error { return nil }
