package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/marcelsud/request-relay/relay"
)

/* PostgreSQL implementation of relay.Ledger
 * BIGSERIAL assigns monotonic identifiers at first persistence; attempts are
 * append-only rows totally ordered by identifier. ClaimDue relies on
 * FOR UPDATE SKIP LOCKED so concurrent sweeps never claim the same request.
 */

var ErrNotFound = relay.ErrNotFound

type Repository struct {
	DB      *sql.DB
	Backoff relay.Backoff
}

// NewRepository creates a PostgreSQL repository with the default pool
// configuration (25, 5, 5 min).
func NewRepository(connectionString string) (*Repository, error) {
	return NewRepositoryWithPoolConfig(connectionString, 25, 5, 5)
}

// NewRepositoryWithPoolConfig creates a PostgreSQL repository with a custom
// connection pool.
func NewRepositoryWithPoolConfig(connectionString string, maxOpenConns, maxIdleConns, maxLifeMinutes int) (*Repository, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
	if maxLifeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(maxLifeMinutes) * time.Minute)
	}

	return &Repository{DB: db, Backoff: relay.DefaultBackoff()}, nil
}

// Create persists a raw request and assigns its identifier.
func (r *Repository) Create(ctx context.Context, raw relay.ReceivedRequest, state relay.State) (relay.Request, error) {
	headers, err := json.Marshal(raw.Headers)
	if err != nil {
		return relay.Request{}, fmt.Errorf("marshaling headers: %w", err)
	}

	var (
		id        int64
		createdAt time.Time
	)
	err = r.DB.QueryRowContext(ctx,
		`INSERT INTO requests (method, uri, headers, body, state)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		raw.Method, raw.URI, headers, raw.Body, state.String(),
	).Scan(&id, &createdAt)
	if err != nil {
		return relay.Request{}, fmt.Errorf("inserting request: %w", err)
	}

	return relay.Request{
		ID:        id,
		Method:    raw.Method,
		URI:       raw.URI,
		Headers:   raw.Headers,
		Body:      raw.Body,
		State:     state,
		CreatedAt: createdAt,
	}, nil
}

// SetState overwrites the lifecycle state of a request.
func (r *Repository) SetState(ctx context.Context, id int64, state relay.State) error {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE requests SET state = $2 WHERE id = $1`,
		id, state.String(),
	)
	if err != nil {
		return fmt.Errorf("updating request state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ScheduleRetry records a retryable terminal state and the next retry time.
// The delay grows exponentially with the recorded attempt count.
func (r *Repository) ScheduleRetry(ctx context.Context, id int64, state relay.State) error {
	var attempts int
	err := r.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM attempts WHERE request_id = $1`,
		id,
	).Scan(&attempts)
	if err != nil {
		return fmt.Errorf("counting attempts: %w", err)
	}

	delay := r.Backoff.NextDelay(attempts)

	result, err := r.DB.ExecContext(ctx,
		`UPDATE requests
		SET state = $2, next_retry_at = now() + ($3 * interval '1 millisecond')
		WHERE id = $1`,
		id, state.String(), delay.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("scheduling retry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendAttempt durably appends one forwarding outcome.
func (r *Repository) AppendAttempt(ctx context.Context, requestID int64, status int, body []byte) (int64, error) {
	if len(body) > relay.MaxAttemptBodySize {
		body = body[:relay.MaxAttemptBodySize]
	}

	var id int64
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO attempts (request_id, status, body)
		VALUES ($1, $2, $3)
		RETURNING id`,
		requestID, status, body,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting attempt: %w", err)
	}
	return id, nil
}

// ThresholdReached reports whether the attempt count for the request is at
// least threshold.
func (r *Repository) ThresholdReached(ctx context.Context, requestID int64, threshold int) (bool, error) {
	var count int
	err := r.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM attempts WHERE request_id = $1`,
		requestID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting attempts: %w", err)
	}
	return count >= threshold, nil
}

// ClaimDue selects due retryable requests and claims them by flipping their
// state back to enqueued in the same statement.
func (r *Repository) ClaimDue(ctx context.Context, limit int) ([]relay.Request, error) {
	rows, err := r.DB.QueryContext(ctx,
		`UPDATE requests
		SET state = $1
		WHERE id IN (
			SELECT id FROM requests
			WHERE state IN ('failed', 'timeout', 'panic')
				AND next_retry_at <= now()
			ORDER BY next_retry_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, method, uri, headers, body, state, created_at, next_retry_at`,
		relay.Enqueued.String(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming due requests: %w", err)
	}
	defer rows.Close()

	return scanRequests(rows)
}

// GetRequest returns one request by identifier.
func (r *Repository) GetRequest(ctx context.Context, id int64) (relay.Request, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, method, uri, headers, body, state, created_at, next_retry_at
		FROM requests
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return relay.Request{}, fmt.Errorf("selecting request: %w", err)
	}
	defer rows.Close()

	requests, err := scanRequests(rows)
	if err != nil {
		return relay.Request{}, err
	}
	if len(requests) == 0 {
		return relay.Request{}, ErrNotFound
	}
	return requests[0], nil
}

// ListRequests returns persisted requests ordered by identifier, for the
// management API.
func (r *Repository) ListRequests(ctx context.Context, limit, offset int) ([]relay.Request, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, method, uri, headers, body, state, created_at, next_retry_at
		FROM requests
		ORDER BY id
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	return scanRequests(rows)
}

// ListAttempts returns recorded attempts ordered by identifier. A zero
// requestID lists attempts across all requests.
func (r *Repository) ListAttempts(ctx context.Context, requestID int64, limit, offset int) ([]relay.Attempt, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, request_id, status, body, created_at
		FROM attempts
		WHERE ($1 = 0 OR request_id = $1)
		ORDER BY id
		LIMIT $2 OFFSET $3`,
		requestID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	defer rows.Close()

	var attempts []relay.Attempt
	for rows.Next() {
		var a relay.Attempt
		if err := rows.Scan(&a.ID, &a.RequestID, &a.Status, &a.Body, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attempts: %w", err)
	}
	return attempts, nil
}

// Close closes the database connection.
func (r *Repository) Close(ctx context.Context) error {
	return r.DB.Close()
}

func scanRequests(rows *sql.Rows) ([]relay.Request, error) {
	var requests []relay.Request
	for rows.Next() {
		var (
			req         relay.Request
			headers     []byte
			state       string
			nextRetryAt sql.NullTime
		)
		err := rows.Scan(&req.ID, &req.Method, &req.URI, &headers, &req.Body, &state, &req.CreatedAt, &nextRetryAt)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		if err := json.Unmarshal(headers, &req.Headers); err != nil {
			return nil, fmt.Errorf("unmarshaling headers: %w", err)
		}
		req.State = relay.NewState(state)
		if nextRetryAt.Valid {
			t := nextRetryAt.Time
			req.NextRetryAt = &t
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating requests: %w", err)
	}
	return requests, nil
}
