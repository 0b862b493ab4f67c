package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/marcelsud/request-relay/origin"
)

/* PostgreSQL implementation of origin.Directory
 * Lives next to the ledger so both share one connection pool and one
 * migration history.
 */

const originColumns = `id, domain, origin_uri, timeout_ms, alert_threshold, alert_email,
		smtp_host, smtp_port, smtp_username, smtp_password, smtp_tls, created_at, updated_at`

type Directory struct {
	DB *sql.DB
}

// Origins returns the origin directory backed by the repository's pool.
func (r *Repository) Origins() *Directory {
	return &Directory{DB: r.DB}
}

// Create inserts a new origin.
func (r *Directory) Create(ctx context.Context, no origin.NewOrigin) (origin.Origin, error) {
	if err := no.Validate(); err != nil {
		return origin.Origin{}, fmt.Errorf("validating origin: %w", err)
	}

	row := r.DB.QueryRowContext(ctx,
		`INSERT INTO origins (domain, origin_uri, timeout_ms, alert_threshold, alert_email,
			smtp_host, smtp_port, smtp_username, smtp_password, smtp_tls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+originColumns,
		no.Domain, no.URI, no.TimeoutMs, no.AlertThreshold, nullString(no.AlertEmail),
		nullString(no.SMTPHost), nullInt(no.SMTPPort), nullString(no.SMTPUsername),
		nullString(no.SMTPPassword), no.SMTPTLS,
	)
	o, err := scanOrigin(row)
	if err != nil {
		return origin.Origin{}, fmt.Errorf("inserting origin: %w", err)
	}
	return o, nil
}

// Update overwrites an origin by identifier.
func (r *Directory) Update(ctx context.Context, id int64, no origin.NewOrigin) (origin.Origin, error) {
	if err := no.Validate(); err != nil {
		return origin.Origin{}, fmt.Errorf("validating origin: %w", err)
	}

	row := r.DB.QueryRowContext(ctx,
		`UPDATE origins
		SET domain = $2, origin_uri = $3, timeout_ms = $4, alert_threshold = $5,
			alert_email = $6, smtp_host = $7, smtp_port = $8, smtp_username = $9,
			smtp_password = $10, smtp_tls = $11, updated_at = now()
		WHERE id = $1
		RETURNING `+originColumns,
		id, no.Domain, no.URI, no.TimeoutMs, no.AlertThreshold, nullString(no.AlertEmail),
		nullString(no.SMTPHost), nullInt(no.SMTPPort), nullString(no.SMTPUsername),
		nullString(no.SMTPPassword), no.SMTPTLS,
	)
	o, err := scanOrigin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return origin.Origin{}, origin.ErrNotFound
	}
	if err != nil {
		return origin.Origin{}, fmt.Errorf("updating origin: %w", err)
	}
	return o, nil
}

// Upsert inserts an origin or overwrites the one holding the same domain.
// Used by the seed loader.
func (r *Directory) Upsert(ctx context.Context, no origin.NewOrigin) (origin.Origin, error) {
	if err := no.Validate(); err != nil {
		return origin.Origin{}, fmt.Errorf("validating origin: %w", err)
	}

	row := r.DB.QueryRowContext(ctx,
		`INSERT INTO origins (domain, origin_uri, timeout_ms, alert_threshold, alert_email,
			smtp_host, smtp_port, smtp_username, smtp_password, smtp_tls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (domain) DO UPDATE
		SET origin_uri = EXCLUDED.origin_uri, timeout_ms = EXCLUDED.timeout_ms,
			alert_threshold = EXCLUDED.alert_threshold, alert_email = EXCLUDED.alert_email,
			smtp_host = EXCLUDED.smtp_host, smtp_port = EXCLUDED.smtp_port,
			smtp_username = EXCLUDED.smtp_username, smtp_password = EXCLUDED.smtp_password,
			smtp_tls = EXCLUDED.smtp_tls, updated_at = now()
		RETURNING `+originColumns,
		no.Domain, no.URI, no.TimeoutMs, no.AlertThreshold, nullString(no.AlertEmail),
		nullString(no.SMTPHost), nullInt(no.SMTPPort), nullString(no.SMTPUsername),
		nullString(no.SMTPPassword), no.SMTPTLS,
	)
	o, err := scanOrigin(row)
	if err != nil {
		return origin.Origin{}, fmt.Errorf("upserting origin: %w", err)
	}
	return o, nil
}

// List returns every configured origin.
func (r *Directory) List(ctx context.Context) ([]origin.Origin, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+originColumns+` FROM origins ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing origins: %w", err)
	}
	defer rows.Close()

	var origins []origin.Origin
	for rows.Next() {
		o, err := scanOrigin(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning origin: %w", err)
		}
		origins = append(origins, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating origins: %w", err)
	}
	return origins, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrigin(row rowScanner) (origin.Origin, error) {
	var (
		o              origin.Origin
		alertThreshold sql.NullInt64
		alertEmail     sql.NullString
		smtpHost       sql.NullString
		smtpPort       sql.NullInt64
		smtpUsername   sql.NullString
		smtpPassword   sql.NullString
	)
	err := row.Scan(&o.ID, &o.Domain, &o.URI, &o.TimeoutMs, &alertThreshold, &alertEmail,
		&smtpHost, &smtpPort, &smtpUsername, &smtpPassword, &o.SMTPTLS, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return origin.Origin{}, err
	}
	if alertThreshold.Valid {
		threshold := int(alertThreshold.Int64)
		o.AlertThreshold = &threshold
	}
	o.AlertEmail = alertEmail.String
	o.SMTPHost = smtpHost.String
	o.SMTPPort = int(smtpPort.Int64)
	o.SMTPUsername = smtpUsername.String
	o.SMTPPassword = smtpPassword.String
	return o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(i int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(i), Valid: i != 0}
}
