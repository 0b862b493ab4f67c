package chi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marcelsud/request-relay/origin"
	"github.com/marcelsud/request-relay/relay"
)

// Acceptor is the slice of the deliverer the ingest listener needs: persist
// first, acknowledge, then continue in the background.
type Acceptor interface {
	Accept(ctx context.Context, raw relay.ReceivedRequest) (relay.Request, error)
	Resume(ctx context.Context, req relay.Request)
}

// History is the read-only view of the ledger the management API consumes.
type History interface {
	GetRequest(ctx context.Context, id int64) (relay.Request, error)
	ListRequests(ctx context.Context, limit, offset int) ([]relay.Request, error)
	ListAttempts(ctx context.Context, requestID int64, limit, offset int) ([]relay.Attempt, error)
}

// ChangeNotifier announces origin directory changes so caches refresh.
type ChangeNotifier interface {
	Notify(ctx context.Context) error
}

// Ingest builds the router for the inbound listener: every method and path is
// accepted and handed to the deliverer.
func Ingest(deliverer Acceptor) *chi.Mux {
	logger := httplog.NewLogger("relay-ingest", httplog.Options{
		JSON: true,
	})
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Handle("/*", ingest(deliverer))

	return r
}

// Management builds the router for the administrative API.
func Management(directory origin.Directory, history History, changes ChangeNotifier) *chi.Mux {
	logger := httplog.NewLogger("relay-mgmt", httplog.Options{
		JSON: true,
	})
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Method(http.MethodGet, "/origins", getOrigins(directory))
	r.Method(http.MethodPost, "/origins", postOrigin(directory, changes))
	r.Method(http.MethodPut, "/origins/{id}", putOrigin(directory, changes))
	r.Method(http.MethodGet, "/requests", getRequests(history))
	r.Method(http.MethodGet, "/requests/{id}", getRequest(history))
	r.Method(http.MethodGet, "/attempts", getAttempts(history))
	r.Handle("/metrics", promhttp.Handler())

	return r
}
