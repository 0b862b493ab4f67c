package relay

import "time"

/* Attempt is one recorded forwarding outcome for a request
 * Append-only: attempts are never mutated or deleted, and the number of
 * attempts recorded for a request is the authoritative retry count
 */
type Attempt struct {
	ID        int64
	RequestID int64
	Status    int
	Body      []byte
	CreatedAt time.Time
}

// MaxAttemptBodySize caps how much of a response body an attempt captures.
const MaxAttemptBodySize = 64 * 1024
