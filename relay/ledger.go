package relay

import (
	"context"
	"errors"
)

// ErrNotFound reports that no request with the given identifier exists.
var ErrNotFound = errors.New("not found")

/* Small, focused view of the durable ledger written for its users
 * The ledger is the single arbiter of request state, attempt history and
 * retry scheduling
 */
type Ledger interface {
	/* Create performs the first persistence of an inbound call and assigns
	 * its identifier atomically. The returned request is the durable record;
	 * the raw payload is never re-persisted afterwards.
	 */
	Create(ctx context.Context, raw ReceivedRequest, state State) (Request, error)

	// SetState overwrites the lifecycle state. Used for transitions that do
	// not carry a retry (Enqueued, Completed, Skipped).
	SetState(ctx context.Context, id int64, state State) error

	/* ScheduleRetry records a retryable terminal state and persists the
	 * timestamp at which the sweep should next consider the request. It must
	 * only be called after the attempt for the same outcome was appended,
	 * since the delay grows with the recorded attempt count.
	 */
	ScheduleRetry(ctx context.Context, id int64, state State) error

	// AppendAttempt durably appends one forwarding outcome. Never overwrites.
	AppendAttempt(ctx context.Context, requestID int64, status int, body []byte) (int64, error)

	// ThresholdReached reports whether the number of recorded attempts for
	// the request is at least threshold.
	ThresholdReached(ctx context.Context, requestID int64, threshold int) (bool, error)

	/* ClaimDue selects up to limit requests whose retry time has elapsed and
	 * whose state is retryable, and claims them by flipping the state back to
	 * Enqueued in the same statement. Two concurrent sweeps can never pick up
	 * the same request.
	 */
	ClaimDue(ctx context.Context, limit int) ([]Request, error)
}
