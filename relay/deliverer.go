package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/marcelsud/request-relay/origin"
)

/* Deliverer drives one request through the delivery state machine
 * A single call performs exactly one forwarding attempt; multiple attempts
 * for a request span multiple calls, coordinated by the Scheduler
 */

// Resolver answers which origin, if any, handles an inbound authority.
type Resolver interface {
	Resolve(authority string) (origin.Origin, bool)
}

// Notifier delivers a human-facing alert for a failing request. Best effort:
// the deliverer logs failures and never propagates them.
type Notifier interface {
	Notify(ctx context.Context, o origin.Origin, requestID int64) error
}

// Recorder counts delivery outcomes. The deliverer ships with a no-op
// implementation so metrics stay optional in tests.
type Recorder interface {
	Outcome(state State)
	ForwardDuration(d time.Duration, status int)
	AlertSent()
}

type nopRecorder struct{}

func (nopRecorder) Outcome(State) {}

func (nopRecorder) ForwardDuration(time.Duration, int) {}

func (nopRecorder) AlertSent() {}

type Deliverer struct {
	ledger    Ledger
	origins   Resolver
	forwarder Forwarder
	alerts    Notifier
	recorder  Recorder
	logger    *slog.Logger
}

// NewDeliverer creates a deliverer with dependency injection.
func NewDeliverer(ledger Ledger, origins Resolver, forwarder Forwarder, alerts Notifier, logger *slog.Logger) *Deliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deliverer{
		ledger:    ledger,
		origins:   origins,
		forwarder: forwarder,
		alerts:    alerts,
		recorder:  nopRecorder{},
		logger:    logger,
	}
}

// WithRecorder sets the outcome recorder.
func (d *Deliverer) WithRecorder(r Recorder) *Deliverer {
	d.recorder = r
	return d
}

/* step is the tagged variant the machine advances through: each state carries
 * exactly the data it needs. raw exists only before the first persistence,
 * origin only once resolution succeeded.
 */
type step struct {
	state  State
	raw    *ReceivedRequest
	req    Request
	origin origin.Origin
}

// Deliver runs the full pipeline for a raw inbound call.
func (d *Deliverer) Deliver(ctx context.Context, raw ReceivedRequest) {
	d.run(ctx, step{state: Received, raw: &raw})
}

// Accept performs only the first persistence, so a listener can acknowledge
// the caller once the request is durable. Continue with Resume.
func (d *Deliverer) Accept(ctx context.Context, raw ReceivedRequest) (Request, error) {
	req, err := d.ledger.Create(ctx, raw, Received)
	if err != nil {
		return Request{}, fmt.Errorf("persisting request: %w", err)
	}
	return req, nil
}

// Resume continues a freshly accepted request through the rest of the
// pipeline.
func (d *Deliverer) Resume(ctx context.Context, req Request) {
	d.run(ctx, step{state: Created, req: req})
}

// Redeliver re-enters the machine for a claimed retry. Entry is at origin
// resolution, not at forwarding: a redirected or removed origin takes effect
// without re-submission.
func (d *Deliverer) Redeliver(ctx context.Context, req Request) {
	d.run(ctx, step{state: UnmappedOrigin, req: req})
}

func (d *Deliverer) run(ctx context.Context, s step) {
	for {
		switch s.state {
		case Received:
			req, err := d.ledger.Create(ctx, *s.raw, Received)
			if err != nil {
				// logged with enough of the payload to recover the dropped
				// request by hand
				d.logger.Error("dropping request, first persistence failed",
					slog.String("method", s.raw.Method),
					slog.String("uri", s.raw.URI),
					slog.Any("error", err),
				)
				return
			}
			s = step{state: Created, req: req}

		case Created:
			s.state = Enqueued

		case Enqueued:
			if err := d.ledger.SetState(ctx, s.req.ID, Enqueued); err != nil {
				d.logger.Error("recording enqueued state failed",
					slog.Int64("request_id", s.req.ID),
					slog.Any("error", err),
				)
				return
			}
			s.state = UnmappedOrigin

		case UnmappedOrigin:
			authority, err := mapAuthority(s.req)
			if err != nil {
				d.logger.Error("origin resolution failed",
					slog.Int64("request_id", s.req.ID),
					slog.Any("error", err),
				)
				return
			}
			o, ok := d.origins.Resolve(authority)
			if !ok {
				s.state = Skipped
				continue
			}
			s.state = Active
			s.origin = o

		case Active:
			start := time.Now()
			resp, err := d.forwarder.Forward(ctx, s.origin, s.req)
			if err != nil {
				// a cancelled delivery context (shutdown, not an origin
				// failure) aborts the invocation; the last durable state
				// stands and a retryable one is swept up again
				if errors.Is(err, context.Canceled) {
					d.logger.Warn("delivery interrupted",
						slog.Int64("request_id", s.req.ID),
						slog.String("origin", s.origin.URI),
					)
					return
				}
				d.logger.Error("forwarding failed",
					slog.Int64("request_id", s.req.ID),
					slog.String("origin", s.origin.URI),
					slog.Any("error", err),
				)
				s.state = Panic
				continue
			}
			d.recorder.ForwardDuration(time.Since(start), resp.Status)

			attemptID, err := d.ledger.AppendAttempt(ctx, s.req.ID, resp.Status, resp.Body)
			if err != nil {
				// without the attempt on record, the classification must not
				// be applied
				d.logger.Error("recording attempt failed",
					slog.Int64("request_id", s.req.ID),
					slog.Any("error", err),
				)
				return
			}
			d.logger.Debug("attempt recorded",
				slog.Int64("request_id", s.req.ID),
				slog.Int64("attempt_id", attemptID),
				slog.Int("status", resp.Status),
			)

			switch {
			case resp.IsSuccess():
				s.state = Completed
			case resp.IsTimeout():
				s.state = Timeout
			default:
				s.state = Failed
			}

		case Completed:
			if err := d.ledger.SetState(ctx, s.req.ID, Completed); err != nil {
				d.logger.Error("recording completed state failed",
					slog.Int64("request_id", s.req.ID),
					slog.Any("error", err),
				)
			}
			d.recorder.Outcome(Completed)
			return

		case Failed, Timeout:
			d.scheduleRetry(ctx, s.req.ID, s.state)
			if s.origin.AlertThreshold != nil {
				d.alertIfThresholdReached(ctx, s.origin, s.req.ID, *s.origin.AlertThreshold)
			}
			d.recorder.Outcome(s.state)
			return

		case Panic:
			d.scheduleRetry(ctx, s.req.ID, Panic)
			// a transport-level failure is always alert-worthy
			d.notify(ctx, s.origin, s.req.ID)
			d.recorder.Outcome(Panic)
			return

		case Skipped:
			if err := d.ledger.SetState(ctx, s.req.ID, Skipped); err != nil {
				d.logger.Error("recording skipped state failed",
					slog.Int64("request_id", s.req.ID),
					slog.Any("error", err),
				)
			}
			d.recorder.Outcome(Skipped)
			return

		default:
			d.logger.Error("invalid delivery state",
				slog.Int64("request_id", s.req.ID),
				slog.String("state", s.state.String()),
			)
			return
		}
	}
}

func (d *Deliverer) scheduleRetry(ctx context.Context, id int64, state State) {
	if err := d.ledger.ScheduleRetry(ctx, id, state); err != nil {
		d.logger.Error("scheduling retry failed",
			slog.Int64("request_id", id),
			slog.String("state", state.String()),
			slog.Any("error", err),
		)
	}
}

func (d *Deliverer) alertIfThresholdReached(ctx context.Context, o origin.Origin, id int64, threshold int) {
	reached, err := d.ledger.ThresholdReached(ctx, id, threshold)
	if err != nil {
		d.logger.Error("threshold check failed, alerting anyway",
			slog.Int64("request_id", id),
			slog.Any("error", err),
		)
		d.notify(ctx, o, id)
		return
	}
	if reached {
		d.notify(ctx, o, id)
	}
}

func (d *Deliverer) notify(ctx context.Context, o origin.Origin, id int64) {
	if err := d.alerts.Notify(ctx, o, id); err != nil {
		d.logger.Error("alert delivery failed",
			slog.Int64("request_id", id),
			slog.String("domain", o.Domain),
			slog.Any("error", err),
		)
		return
	}
	d.recorder.AlertSent()
}

// mapAuthority extracts the authority the request was addressed to: from the
// URI when absolute, otherwise from the host header.
func mapAuthority(req Request) (string, error) {
	u, err := url.Parse(req.URI)
	if err != nil {
		return "", fmt.Errorf("parsing request uri %s: %w", req.URI, err)
	}
	if u.Host != "" {
		return u.Host, nil
	}
	if host, ok := req.HeaderValue("host"); ok && host != "" {
		return host, nil
	}
	return "", fmt.Errorf("no authority in uri or host header for request %d", req.ID)
}
