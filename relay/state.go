package relay

import "fmt"

/* State represents the lifecycle state of a relayed request
 * Received -> Created -> Enqueued -> UnmappedOrigin -> Active -> terminal
 * Completed and Skipped are final; Failed, Timeout and Panic end the current
 * delivery but leave the request eligible for a retry sweep
 */
type State int

const (
	Received State = iota + 1
	Created
	Enqueued
	UnmappedOrigin
	Active
	Completed
	Failed
	Timeout
	Panic
	Skipped
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case Created:
		return "created"
	case Enqueued:
		return "enqueued"
	case UnmappedOrigin:
		return "unmapped_origin"
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Timeout:
		return "timeout"
	case Panic:
		return "panic"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// NewState creates a State from a string
func NewState(str string) State {
	switch str {
	case "received":
		return Received
	case "created":
		return Created
	case "enqueued":
		return Enqueued
	case "unmapped_origin":
		return UnmappedOrigin
	case "active":
		return Active
	case "completed":
		return Completed
	case "failed":
		return Failed
	case "timeout":
		return Timeout
	case "panic":
		return Panic
	case "skipped":
		return Skipped
	default:
		return Received
	}
}

// Validate checks if the state is valid
func (s State) Validate() error {
	if s < Received || s > Skipped {
		return fmt.Errorf("invalid state: %d", s)
	}
	return nil
}

// IsFinal returns true if no further activity is possible for the request
func (s State) IsFinal() bool {
	return s == Completed || s == Skipped
}

// IsRetryable returns true if the state ends the current delivery but leaves
// the request eligible for another attempt
func (s State) IsRetryable() bool {
	return s == Failed || s == Timeout || s == Panic
}
