package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/marcelsud/request-relay/origin"
)

// Response is a normalized forwarding outcome: either the origin's reply or
// the synthetic 504 manufactured locally when the timeout elapses.
type Response struct {
	Status int
	Body   []byte
}

// IsSuccess reports whether the origin accepted the request.
func (r Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// IsTimeout reports whether the exchange timed out.
func (r Response) IsTimeout() bool {
	return r.Status == http.StatusGatewayTimeout
}

/* Forwarder issues the outbound exchange with an origin
 * A returned error means the exchange could not complete at the transport
 * level; a timeout is not an error but a synthetic 504 response
 */
type Forwarder interface {
	Forward(ctx context.Context, o origin.Origin, req Request) (Response, error)
}

// HTTPForwarder forwards requests over a shared http.Client. The per-call
// timeout comes from the origin, not from the client.
type HTTPForwarder struct {
	client *http.Client
}

// NewHTTPForwarder creates a forwarder on top of the given client.
// A nil client falls back to http.DefaultClient.
func NewHTTPForwarder(client *http.Client) *HTTPForwarder {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPForwarder{client: client}
}

// Forward sends the request to the origin's scheme and authority, keeping the
// original path-and-query, method, headers and body.
func (f *HTTPForwarder) Forward(ctx context.Context, o origin.Origin, req Request) (Response, error) {
	target, err := buildTarget(o, req.URI)
	if err != nil {
		return Response{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.ForwardTimeout())
	defer cancel()

	outbound, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, fmt.Errorf("building outbound request: %w", err)
	}

	for _, h := range req.Headers {
		// the authority is substituted by the origin; everything else is
		// carried through as-is
		if strings.EqualFold(h.Name, "host") {
			continue
		}
		outbound.Header.Add(h.Name, h.Value)
	}

	resp, err := f.client.Do(outbound)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Response{
				Status: http.StatusGatewayTimeout,
				Body:   []byte("Timeout"),
			}, nil
		}
		return Response{}, fmt.Errorf("forwarding to %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxAttemptBodySize))
	if err != nil {
		return Response{}, fmt.Errorf("reading origin response: %w", err)
	}

	return Response{Status: resp.StatusCode, Body: body}, nil
}

// buildTarget joins the origin's scheme and authority with the original
// path-and-query.
func buildTarget(o origin.Origin, rawURI string) (string, error) {
	originURL, err := url.Parse(o.URI)
	if err != nil {
		return "", fmt.Errorf("parsing origin uri %s: %w", o.URI, err)
	}
	if originURL.Scheme == "" {
		return "", fmt.Errorf("origin uri missing scheme: %s", o.URI)
	}
	if originURL.Host == "" {
		return "", fmt.Errorf("origin uri missing authority: %s", o.URI)
	}

	requestURL, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("parsing request uri %s: %w", rawURI, err)
	}
	if requestURL.Path == "" && requestURL.RawQuery == "" {
		return "", fmt.Errorf("missing path and query: %s", rawURI)
	}

	target := url.URL{
		Scheme:   originURL.Scheme,
		Host:     originURL.Host,
		Path:     requestURL.Path,
		RawQuery: requestURL.RawQuery,
	}
	return target.String(), nil
}
