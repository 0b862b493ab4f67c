package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"

	"github.com/marcelsud/request-relay/origin"
)

/* SMTP alert delivery
 * Each origin carries its own SMTP endpoint and recipient, so the client is
 * built per notification. Delivery is best effort: the caller logs errors and
 * never retries them.
 */

type Mailer struct {
	from   string
	logger *slog.Logger
}

// NewMailer creates an SMTP notifier sending from the given address.
func NewMailer(from string, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{from: from, logger: logger}
}

// Notify emails the origin's alert recipient about a failing request.
func (m *Mailer) Notify(ctx context.Context, o origin.Origin, requestID int64) error {
	if o.AlertEmail == "" {
		return fmt.Errorf("origin %s has no alert email", o.Domain)
	}
	if o.SMTPHost == "" {
		return fmt.Errorf("origin %s has no smtp host", o.Domain)
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	if err := msg.To(o.AlertEmail); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}
	msg.SetMessageIDWithValue(uuid.NewString())
	msg.Subject(fmt.Sprintf("delivery to %s is failing (request %d)", o.Domain, requestID))
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Forwarding request %d to %s keeps failing.\n\nInspect the attempt history via the management API: GET /attempts?request_id=%d\n",
		requestID, o.URI, requestID,
	))

	opts := []mail.Option{mail.WithPort(o.SMTPPort)}
	if o.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(o.SMTPUsername),
			mail.WithPassword(o.SMTPPassword),
		)
	}
	if o.SMTPTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(o.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending alert: %w", err)
	}

	m.logger.Info("alert sent",
		slog.String("domain", o.Domain),
		slog.String("recipient", o.AlertEmail),
		slog.Int64("request_id", requestID),
	)
	return nil
}
