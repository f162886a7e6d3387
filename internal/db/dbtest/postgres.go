// Package dbtest starts a throwaway Postgres for repository integration tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jfkeci/job-board-sub000/internal/db"
	"github.com/jfkeci/job-board-sub000/internal/db/migrate"
)

// NewPostgres starts a Postgres container, applies every migration and returns an open
// handle. The test is skipped with -short or when no container runtime is reachable.
func NewPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("jobboard"),
		postgres.WithUsername("jobboard"),
		postgres.WithPassword("jobboard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, migrate.Run(dsn, "up"))

	conn, err := db.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// InsertTenant creates a tenant row and returns its id.
func InsertTenant(t *testing.T, conn *sql.DB) string {
	t.Helper()
	id := uuid.NewString()
	_, err := conn.Exec(`INSERT INTO tenants (id, name, slug) VALUES ($1, $2, $3)`, id, "Tenant "+id[:8], "t-"+id)
	require.NoError(t, err)
	return id
}

// InsertUser creates a USER-role user in tenantID with a random email and returns its id.
func InsertUser(t *testing.T, conn *sql.DB, tenantID string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := conn.Exec(`INSERT INTO users (id, tenant_id, email) VALUES ($1, $2, $3)`, id, tenantID, id+"@example.com")
	require.NoError(t, err)
	return id
}

// InsertSession creates a session for userID expiring after ttl and returns its id.
func InsertSession(t *testing.T, conn *sql.DB, userID string, ttl time.Duration) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := conn.Exec(`INSERT INTO sessions (id, user_id, last_activity_at, expires_at) VALUES ($1, $2, $3, $4)`,
		id, userID, now, now.Add(ttl))
	require.NoError(t, err)
	return id
}
