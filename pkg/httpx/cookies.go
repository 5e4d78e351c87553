package httpx

import (
	"crypto/hmac"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Jar is a request-scoped cookie jar with optional signing. Values written
// during a request are immediately visible to later reads from the same
// Jar, so a middleware that rotates tokens and a handler that reads them
// within the same chain observe a consistent view.
//
// Signed values are stored as "<value>|<mac>" where the MAC is a keyed
// BLAKE2b-256 over "name=value". The session credential cookie is the one
// deliberate exception to signing; its entropy alone protects it.
type Jar struct {
	r       *http.Request
	w       http.ResponseWriter
	key     []byte
	secure  bool
	pending map[string]string
}

// CookieOpts controls how a cookie is written.
type CookieOpts struct {
	Path   string
	Signed bool
	// MaxAge of zero means a session cookie.
	MaxAge time.Duration
}

// NewJar builds a jar over one request/response pair. key is the cookie
// signing key; it must be 64 bytes or fewer (BLAKE2b key limit).
func NewJar(w http.ResponseWriter, r *http.Request, key []byte) *Jar {
	return &Jar{
		r:       r,
		w:       w,
		key:     key,
		secure:  r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		pending: make(map[string]string),
	}
}

// Get returns the raw (unsigned) cookie value.
func (j *Jar) Get(name string) (string, bool) {
	v, ok := j.lookup(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// GetSigned returns the cookie value after verifying its signature.
// Tampered or unsigned values read as absent.
func (j *Jar) GetSigned(name string) (string, bool) {
	v, ok := j.lookup(name)
	if !ok || v == "" {
		return "", false
	}

	value, sig, found := strings.Cut(v, "|")
	if !found {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(j.sign(name, value))) {
		return "", false
	}
	return value, true
}

// Set writes a cookie and records it so later Gets within this request see
// the new value.
func (j *Jar) Set(name, value string, opts CookieOpts) {
	stored := value
	if opts.Signed {
		stored = value + "|" + j.sign(name, value)
	}

	c := &http.Cookie{
		Name:     name,
		Value:    stored,
		Path:     opts.Path,
		Secure:   j.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if opts.MaxAge > 0 {
		c.MaxAge = int(opts.MaxAge.Seconds())
		c.Expires = time.Now().Add(opts.MaxAge)
	}
	http.SetCookie(j.w, c)
	j.pending[name] = stored
}

// Clear expires a cookie. Path must match the path it was set with.
func (j *Jar) Clear(name, path string) {
	http.SetCookie(j.w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   path,
		MaxAge: -1,
	})
	j.pending[name] = ""
}

func (j *Jar) lookup(name string) (string, bool) {
	if v, ok := j.pending[name]; ok {
		return v, v != ""
	}
	c, err := j.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (j *Jar) sign(name, value string) string {
	mac, err := blake2b.New256(j.key)
	if err != nil {
		// Only reachable with a key over 64 bytes, which the config
		// layer rejects at startup.
		panic("httpx: invalid cookie signing key: " + err.Error())
	}
	mac.Write([]byte(name + "=" + value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
