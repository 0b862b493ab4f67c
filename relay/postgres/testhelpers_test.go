//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marcelsud/request-relay/relay"
)

/*
Test helpers for PostgreSQL with testcontainers

- Starts a real PostgreSQL Docker container
- Runs the embedded migrations against it
- Returns the connection string for the repository under test
- Cleanup terminates the container

Run with: go test -tags=integration ./relay/postgres/...
Requires Docker.
*/

const (
	defaultDatabase = "testdb"
	defaultUser     = "testuser"
	defaultPassword = "testpass"
)

// PostgresContainer bundles the container and its connection
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
	ConnStr   string
}

// SetupPostgresContainer starts a migrated PostgreSQL container
func SetupPostgresContainer(t *testing.T, ctx context.Context) (*PostgresContainer, func()) {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(defaultDatabase),
		postgres.WithUsername(defaultUser),
		postgres.WithPassword(defaultPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)

	err = db.PingContext(ctx)
	require.NoError(t, err)

	require.NoError(t, Migrate(db))

	container := &PostgresContainer{
		Container: pgContainer,
		DB:        db,
		ConnStr:   connStr,
	}

	cleanup := func() {
		if db != nil {
			_ = db.Close()
		}
		if pgContainer != nil {
			_ = pgContainer.Terminate(ctx)
		}
	}

	return container, cleanup
}

// CreateTestRepository opens a repository against the container
func CreateTestRepository(t *testing.T, connStr string) *Repository {
	t.Helper()

	repo, err := NewRepository(connStr)
	require.NoError(t, err)

	return repo
}

// CreateTestRequest persists one request and returns it
func CreateTestRequest(t *testing.T, ctx context.Context, repo *Repository) relay.Request {
	t.Helper()

	req, err := repo.Create(ctx, relay.ReceivedRequest{
		Method:  "POST",
		URI:     "/hook?source=test",
		Headers: []relay.Header{{Name: "host", Value: "a.example"}, {Name: "Content-Type", Value: "application/json"}},
		Body:    []byte(`{"event":"test"}`),
	}, relay.Received)
	require.NoError(t, err)

	return req
}

// AssertRequestState reads the persisted state of a request
func AssertRequestState(t *testing.T, ctx context.Context, db *sql.DB, id int64, expected relay.State) {
	t.Helper()

	var state string
	err := db.QueryRowContext(ctx, "SELECT state FROM requests WHERE id = $1", id).Scan(&state)
	require.NoError(t, err)
	require.Equal(t, expected.String(), state)
}

// AssertAttemptCount verifies how many attempts a request has
func AssertAttemptCount(t *testing.T, ctx context.Context, db *sql.DB, requestID int64, expected int) {
	t.Helper()

	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attempts WHERE request_id = $1", requestID).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, expected, count)
}

// MarkDue rewinds next_retry_at so the request is immediately claimable
func MarkDue(t *testing.T, ctx context.Context, db *sql.DB, id int64) {
	t.Helper()

	_, err := db.ExecContext(ctx,
		"UPDATE requests SET next_retry_at = now() - interval '1 second' WHERE id = $1", id)
	require.NoError(t, err)
}
