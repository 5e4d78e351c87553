package proxy

import (
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/canopyml/appgate/pkg/slogx"
)

const dialTimeout = 10 * time.Second

// IsUpgradeRequest reports whether the request asks for a protocol
// upgrade (in practice, a WebSocket handshake).
func IsUpgradeRequest(r *http.Request) bool {
	if r.Header.Get("Upgrade") == "" {
		return false
	}
	for _, token := range strings.Split(r.Header.Get("Connection"), ",") {
		if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
			return true
		}
	}
	return false
}

// ForwardUpgrade hijacks the client connection, replays the handshake
// against the backend, and splices bytes in both directions until either
// side closes. The gateway does not speak WebSocket; once the handshake
// is on the wire it is a dumb pipe.
func (f *Forwarder) ForwardUpgrade(w http.ResponseWriter, r *http.Request, opts ForwardOptions) {
	log := slogx.FromContext(r.Context())

	backend, err := net.DialTimeout("tcp", dialAddr(opts), dialTimeout)
	if err != nil {
		status := statusForBackendError(err)
		log.Error("backend dial failed for upgrade",
			"app_id", opts.AppID,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
		w.WriteHeader(status)
		return
	}
	defer backend.Close()

	outReq := r.Clone(r.Context())
	outReq.RequestURI = ""
	rewriteRequest(outReq, r, opts)

	if err := outReq.Write(backend); err != nil {
		log.Error("failed to replay upgrade handshake",
			"app_id", opts.AppID,
			"path", r.URL.Path,
			"error", err,
		)
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	client, clientBuf, err := http.NewResponseController(w).Hijack()
	if err != nil {
		log.Error("hijack failed for upgrade",
			"app_id", opts.AppID,
			"error", err,
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer client.Close()

	done := make(chan struct{}, 2)
	go func() {
		// clientBuf may hold bytes read past the handshake.
		_, _ = io.Copy(backend, clientBuf)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(client, backend)
		done <- struct{}{}
	}()
	<-done

	log.Debug("upgrade connection closed",
		"app_id", opts.AppID,
		"path", r.URL.Path,
	)
}

// DropUpgrade hijacks the connection and closes it without a response.
// Upgrade requests for unknown applications are dropped rather than
// answered; browser clients retry with backoff and an HTTP error here
// would break their reconnect loops.
func DropUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, _, err := http.NewResponseController(w).Hijack()
	if err != nil {
		// Not hijackable; closing the request without a body is the
		// nearest equivalent.
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_ = conn.Close()

	slogx.FromContext(r.Context()).Debug("dropped upgrade for unknown application",
		"path", r.URL.Path,
	)
}

func dialAddr(opts ForwardOptions) string {
	host := opts.Target.Host
	if opts.Target.Port() == "" {
		switch opts.Target.Scheme {
		case "https", "wss":
			host += ":443"
		default:
			host += ":80"
		}
	}
	return host
}
