// Package store holds session state, rate limit state, and the audit log.
//
// postgres.go -- pgxpool connection and audit log queries.
// Postgres is optional and only ever receives audit events; sessions stay in memory.
// All queries use parameterized statements (no string concatenation).
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore writes audit events to Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates and pings a connection pool.
// Call once at startup from main.go; the returned store is safe for concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// WriteAuditLog inserts one audit event.
func (s *PostgresStore) WriteAuditLog(ctx context.Context, e AuditEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_logs (principal_id, action, ip_address, user_agent, metadata)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.PrincipalID, e.Action, e.IPAddress, e.UserAgent, e.Metadata)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

// CountAuditLogs returns how many events exist for action and principalID.
// Used by operators' tooling and integration tests.
func (s *PostgresStore) CountAuditLogs(ctx context.Context, principalID, action string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		"SELECT count(*) FROM audit_logs WHERE principal_id = $1 AND action = $2",
		principalID, action).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting audit logs: %w", err)
	}
	return n, nil
}

// CheckHealth pings the pool.
func (s *PostgresStore) CheckHealth(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// NopAuditor discards audit events. Used when DATABASE_URL is not set.
type NopAuditor struct{}

func (NopAuditor) WriteAuditLog(context.Context, AuditEntry) error { return nil }

// CheckHealth reports ErrDisabled.
func (NopAuditor) CheckHealth(context.Context) error { return ErrDisabled }
