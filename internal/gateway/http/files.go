package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/canopyml/appgate/internal/gateway/auth"
	"github.com/canopyml/appgate/internal/gateway/directory"
	"github.com/canopyml/appgate/internal/gateway/proxy"
	"github.com/canopyml/appgate/pkg/httpx"
	"github.com/canopyml/appgate/pkg/slogx"
)

// FilesHandler proxies shared-storage browsing to the platform API. The
// first path segment names the owning group; the requester must be a
// member. The user's access token rides along as a bearer header so the
// API enforces its own permissions too.
type FilesHandler struct {
	Gate      *auth.Gate
	Directory directory.Service
	Forwarder *proxy.Forwarder
	CookieKey []byte
	Prefix    string

	// Target is the platform API origin; APIPrefix its path prefix.
	Target    *url.URL
	APIPrefix string
}

// ServeHTTP godoc
//
//	@Summary		Group Files Proxy
//	@Description	Forwards file browsing requests to the platform API with the user's
//	@Description	access token attached. Requires membership of the group named by the
//	@Description	first path segment.
//	@Tags			Files
//	@Param			rest	path		string	true	"group/path/to/file"
//	@Success		302		{string}	string	"redirect to login when unauthenticated"
//	@Failure		403		{object}	map[string]string	"not a member of the group"
//	@Router			/files/{rest} [get].
func (h *FilesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	jar := httpx.NewJar(w, r, h.CookieKey)

	state, decision := h.Gate.RequireLogin(r, jar)
	if runDecision(w, r, decision) {
		return
	}

	group := firstSegment(r.PathValue("rest"))
	if group == "" {
		writeNotFound(w, r)
		return
	}

	member, err := h.Directory.IsGroupMember(r.Context(), state.UserID, group)
	if err != nil {
		slogx.FromContext(r.Context()).Error("membership check failed",
			"group", group, "user_id", state.UserID, "error", err)
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]string{
			"error": "directory unavailable",
		})
		return
	}
	if !member {
		writeForbidden(w, r)
		return
	}

	// The gate may have refreshed the token this request; prefer it.
	accessRaw, _ := jar.GetSigned(auth.CookieAccessToken)
	accessToken := state.AccessToken(accessRaw)

	target := *h.Target
	target.Path = h.APIPrefix + "/files"

	slogx.MarkProxied(r.Context())
	h.Forwarder.Forward(w, r, proxy.ForwardOptions{
		AppID:       "files",
		Target:      &target,
		StripPrefix: h.Prefix + "/files",
		Header: http.Header{
			"Authorization": {"Bearer " + accessToken},
		},
	})
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}
