package chi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/marcelsud/request-relay/relay"
)

// ingestResponse acknowledges that a request is durable.
type ingestResponse struct {
	RequestID int64 `json:"request_id"`
}

/* ingest handles every inbound call
 * The request is persisted before the caller gets its acknowledgment; the
 * rest of the delivery pipeline runs detached from the caller's context
 */
func ingest(deliverer Acceptor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		// Go moves the Host header out of r.Header; put it back so origin
		// resolution can see the authority the caller used
		headers := make([]relay.Header, 0, len(r.Header)+1)
		headers = append(headers, relay.Header{Name: "host", Value: r.Host})
		for name, values := range r.Header {
			for _, value := range values {
				headers = append(headers, relay.Header{Name: name, Value: value})
			}
		}

		raw := relay.ReceivedRequest{
			Method:  r.Method,
			URI:     r.URL.RequestURI(),
			Headers: headers,
			Body:    body,
		}

		req, err := deliverer.Accept(r.Context(), raw)
		if err != nil {
			http.Error(w, "failed to persist request", http.StatusInternalServerError)
			return
		}

		go deliverer.Resume(context.WithoutCancel(r.Context()), req)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ingestResponse{RequestID: req.ID}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
