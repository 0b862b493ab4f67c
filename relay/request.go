package relay

import (
	"strings"
	"time"
)

/* Request represents one inbound call persisted by the ledger
 * Uses value semantics as it represents data, not behavior
 */
type Request struct {
	ID          int64
	Method      string
	URI         string
	Headers     []Header
	Body        []byte
	State       State
	CreatedAt   time.Time
	NextRetryAt *time.Time
}

/* Header is a single header pair
 * A slice of Header keeps the original ordering and allows duplicate names,
 * which map[string]string would silently collapse
 */
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ReceivedRequest is a raw inbound call before its first persistence.
// It has no identifier yet; the ledger assigns one exactly once.
type ReceivedRequest struct {
	Method  string
	URI     string
	Headers []Header
	Body    []byte
}

// HeaderValue returns the first header with the given name, case-insensitive.
func (r ReceivedRequest) HeaderValue(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// HeaderValue returns the first header with the given name, case-insensitive.
func (r Request) HeaderValue(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}
