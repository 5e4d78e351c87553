package http

import (
	"net/http"

	"github.com/canopyml/appgate/internal/gateway/auth"
	"github.com/canopyml/appgate/pkg/httpx"
	"github.com/canopyml/appgate/pkg/slogx"
)

// runDecision executes a non-Continue gate decision. Returns true when
// the response has been written and the handler must stop.
func runDecision(w http.ResponseWriter, r *http.Request, d auth.Decision) bool {
	switch d.Kind {
	case auth.KindContinue:
		return false
	case auth.KindRedirect:
		httpx.NoCache(w)
		http.Redirect(w, r, d.Location, http.StatusFound)
	case auth.KindRespond:
		httpx.WriteJSON(w, d.Status, d.Body)
	case auth.KindFail:
		slogx.FromContext(r.Context()).Error("auth gate failure", "error", d.Err)
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]string{
			"error": "identity provider unavailable",
		})
	}
	return true
}

// writeForbidden answers a request the user is authenticated for but not
// authorized to make. The body never names the application or group; the
// requester learns nothing beyond the status.
func writeForbidden(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsHTML(r) {
		httpx.NoCache(w)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	httpx.WriteJSON(w, http.StatusForbidden, map[string]string{
		"error": "forbidden",
	})
}

// writeNotFound answers requests for applications that do not exist or
// are not ready. Same body either way, existence is not leaked.
func writeNotFound(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsHTML(r) {
		http.NotFound(w, r)
		return
	}
	httpx.WriteJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
	})
}
