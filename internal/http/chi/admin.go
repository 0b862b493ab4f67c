package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marcelsud/request-relay/origin"
	"github.com/marcelsud/request-relay/relay"
)

/* HTTP layer DTOs for the management API
 * Separate from domain entities to avoid leaking internal structure
 */

// originResponse represents an origin in the API
type originResponse struct {
	ID             int64  `json:"id"`
	Domain         string `json:"domain"`
	OriginURI      string `json:"origin_uri"`
	Timeout        int    `json:"timeout"`
	AlertThreshold *int   `json:"alert_threshold"`
	AlertEmail     string `json:"alert_email,omitempty"`
	SMTPHost       string `json:"smtp_host,omitempty"`
	SMTPPort       int    `json:"smtp_port,omitempty"`
	SMTPTLS        bool   `json:"smtp_tls"`
}

// requestResponse represents a persisted request in the API
type requestResponse struct {
	ID          int64      `json:"id"`
	Method      string     `json:"method"`
	URI         string     `json:"uri"`
	State       string     `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

// attemptResponse represents a recorded attempt in the API
type attemptResponse struct {
	ID        int64     `json:"id"`
	RequestID int64     `json:"request_id"`
	Status    int       `json:"status"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const defaultPageSize = 100

// postOrigin handles POST /origins
func postOrigin(directory origin.Directory, changes ChangeNotifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var no origin.NewOrigin
		if err := json.NewDecoder(r.Body).Decode(&no); err != nil {
			http.Error(w, "cannot parse request body", http.StatusBadRequest)
			return
		}

		o, err := directory.Create(r.Context(), no)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		notifyChange(r, changes)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(toOriginResponse(o)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// putOrigin handles PUT /origins/{id}
func putOrigin(directory origin.Directory, changes ChangeNotifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid origin id", http.StatusBadRequest)
			return
		}

		var no origin.NewOrigin
		if err := json.NewDecoder(r.Body).Decode(&no); err != nil {
			http.Error(w, "cannot parse request body", http.StatusBadRequest)
			return
		}

		o, err := directory.Update(r.Context(), id, no)
		if errors.Is(err, origin.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		notifyChange(r, changes)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(toOriginResponse(o)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getOrigins handles GET /origins
func getOrigins(directory origin.Directory) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origins, err := directory.List(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		responses := make([]originResponse, 0, len(origins))
		for _, o := range origins {
			responses = append(responses, toOriginResponse(o))
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(responses); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getRequests handles GET /requests
func getRequests(history History) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pagination(r)

		requests, err := history.ListRequests(r.Context(), limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		responses := make([]requestResponse, 0, len(requests))
		for _, req := range requests {
			responses = append(responses, requestResponse{
				ID:          req.ID,
				Method:      req.Method,
				URI:         req.URI,
				State:       req.State.String(),
				CreatedAt:   req.CreatedAt,
				NextRetryAt: req.NextRetryAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(responses); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getRequest handles GET /requests/{id}
func getRequest(history History) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid request id", http.StatusBadRequest)
			return
		}

		req, err := history.GetRequest(r.Context(), id)
		if errors.Is(err, relay.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		response := requestResponse{
			ID:          req.ID,
			Method:      req.Method,
			URI:         req.URI,
			State:       req.State.String(),
			CreatedAt:   req.CreatedAt,
			NextRetryAt: req.NextRetryAt,
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getAttempts handles GET /attempts with an optional request_id filter
func getAttempts(history History) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pagination(r)

		var requestID int64
		if raw := r.URL.Query().Get("request_id"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.Error(w, "invalid request_id", http.StatusBadRequest)
				return
			}
			requestID = parsed
		}

		attempts, err := history.ListAttempts(r.Context(), requestID, limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		responses := make([]attemptResponse, 0, len(attempts))
		for _, a := range attempts {
			responses = append(responses, attemptResponse{
				ID:        a.ID,
				RequestID: a.RequestID,
				Status:    a.Status,
				Body:      string(a.Body),
				CreatedAt: a.CreatedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(responses); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func toOriginResponse(o origin.Origin) originResponse {
	return originResponse{
		ID:             o.ID,
		Domain:         o.Domain,
		OriginURI:      o.URI,
		Timeout:        o.TimeoutMs,
		AlertThreshold: o.AlertThreshold,
		AlertEmail:     o.AlertEmail,
		SMTPHost:       o.SMTPHost,
		SMTPPort:       o.SMTPPort,
		SMTPTLS:        o.SMTPTLS,
	}
}

func notifyChange(r *http.Request, changes ChangeNotifier) {
	if changes == nil {
		return
	}
	// cache refresh is advisory; the poll loop covers a lost note
	_ = changes.Notify(r.Context())
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
