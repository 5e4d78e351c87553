// Package proxy forwards requests to application backends, covering both
// plain HTTP and hijacked WebSocket upgrades.
package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"syscall"

	"github.com/canopyml/appgate/pkg/httpx"
	"github.com/canopyml/appgate/pkg/slogx"
)

// Forwarder streams requests to backends. A single attempt per request,
// never a retry; whether a failed request is safe to replay is the
// caller's call, not the gateway's.
type Forwarder struct {
	// Transport overrides http.DefaultTransport for backend calls.
	Transport http.RoundTripper
}

// ForwardOptions describes one backend forward.
type ForwardOptions struct {
	// AppID tags log entries for this forward.
	AppID string

	// Target is the backend base URL.
	Target *url.URL

	// StripPrefix is removed from the front of the request path before
	// it is joined onto the target path. Empty means forward as-is.
	StripPrefix string

	// Header entries are set on the outbound request, replacing any
	// client-sent values for the same keys.
	Header http.Header
}

// Forward proxies the request to the backend and streams the response
// back. The response is flushed as it arrives so long-polling and
// server-sent events work through the gateway.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, opts ForwardOptions) {
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			rewriteRequest(pr.Out, r, opts)
			pr.SetXForwarded()
		},
		Transport:     f.Transport,
		FlushInterval: -1,
		ErrorHandler:  f.errorHandler(opts.AppID),
	}
	rp.ServeHTTP(w, r)
}

// rewriteRequest points out at the backend. The Host header follows the
// target so virtual-hosted backends accept the request.
func rewriteRequest(out *http.Request, in *http.Request, opts ForwardOptions) {
	out.URL.Scheme = opts.Target.Scheme
	out.URL.Host = opts.Target.Host
	out.URL.Path = joinPath(opts.Target.Path, strippedPath(in.URL.Path, opts.StripPrefix))
	out.Host = opts.Target.Host

	for k, vs := range opts.Header {
		out.Header[k] = vs
	}
}

func strippedPath(path, prefix string) string {
	if prefix == "" {
		return path
	}
	stripped := strings.TrimPrefix(path, prefix)
	if !strings.HasPrefix(stripped, "/") {
		stripped = "/" + stripped
	}
	return stripped
}

func joinPath(base, rest string) string {
	switch {
	case strings.HasSuffix(base, "/") && strings.HasPrefix(rest, "/"):
		return base + rest[1:]
	case !strings.HasSuffix(base, "/") && !strings.HasPrefix(rest, "/"):
		return base + "/" + rest
	}
	return base + rest
}

// errorHandler maps backend failures onto response codes: connection
// refused means the application is down (503), a timeout means it is
// stuck (504), anything else is a plain 500. A client that disconnected
// mid-stream gets nothing, there is no one left to answer.
func (f *Forwarder) errorHandler(appID string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		log := slogx.FromContext(r.Context())

		if errors.Is(err, context.Canceled) {
			log.Debug("client disconnected during forward",
				"app_id", appID,
				"method", r.Method,
				"path", r.URL.Path,
			)
			return
		}

		status := statusForBackendError(err)
		log.Error("backend forward failed",
			"app_id", appID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)

		httpx.WriteJSON(w, status, map[string]string{
			"error": http.StatusText(status),
		})
	}
}

func statusForBackendError(err error) int {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return http.StatusServiceUnavailable
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return http.StatusGatewayTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}

	return http.StatusInternalServerError
}
