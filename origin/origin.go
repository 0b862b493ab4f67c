package origin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

/* Origin is a configured forwarding destination for an inbound authority
 * Uses value semantics as it represents configuration, not behavior
 */
type Origin struct {
	ID             int64
	Domain         string
	URI            string
	TimeoutMs      int
	AlertThreshold *int
	AlertEmail     string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SMTPTLS        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewOrigin carries the fields of an origin before it is persisted.
type NewOrigin struct {
	Domain         string `yaml:"domain" json:"domain"`
	URI            string `yaml:"origin_uri" json:"origin_uri"`
	TimeoutMs      int    `yaml:"timeout_ms" json:"timeout"`
	AlertThreshold *int   `yaml:"alert_threshold" json:"alert_threshold"`
	AlertEmail     string `yaml:"alert_email" json:"alert_email"`
	SMTPHost       string `yaml:"smtp_host" json:"smtp_host"`
	SMTPPort       int    `yaml:"smtp_port" json:"smtp_port"`
	SMTPUsername   string `yaml:"smtp_username" json:"smtp_username"`
	SMTPPassword   string `yaml:"smtp_password" json:"smtp_password"`
	SMTPTLS        bool   `yaml:"smtp_tls" json:"smtp_tls"`
}

// ForwardTimeout returns the configured forwarding timeout.
func (o Origin) ForwardTimeout() time.Duration {
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

// Validate checks if the origin configuration is valid
func (o NewOrigin) Validate() error {
	if o.Domain == "" {
		return fmt.Errorf("domain cannot be empty")
	}
	if o.URI == "" {
		return fmt.Errorf("origin_uri cannot be empty for domain %s", o.Domain)
	}
	u, err := url.Parse(o.URI)
	if err != nil {
		return fmt.Errorf("invalid origin_uri for domain %s: %w", o.Domain, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("origin_uri must carry scheme and authority for domain %s", o.Domain)
	}
	if o.TimeoutMs <= 0 {
		return fmt.Errorf("timeout_ms must be positive for domain %s", o.Domain)
	}
	if o.AlertThreshold != nil && *o.AlertThreshold < 1 {
		return fmt.Errorf("alert_threshold must be at least 1 for domain %s", o.Domain)
	}
	if o.AlertThreshold != nil && o.AlertEmail == "" {
		return fmt.Errorf("alert_email is required when alert_threshold is set for domain %s", o.Domain)
	}
	return nil
}

var ErrNotFound = errors.New("origin not found")

/* Directory is the durable configuration of known destinations
 * Written by the management API and the seed loader, read by the cache
 */
type Directory interface {
	Create(ctx context.Context, no NewOrigin) (Origin, error)
	Update(ctx context.Context, id int64, no NewOrigin) (Origin, error)
	Upsert(ctx context.Context, no NewOrigin) (Origin, error)
	List(ctx context.Context) ([]Origin, error)
}
