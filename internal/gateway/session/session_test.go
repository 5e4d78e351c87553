package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/canopyml/appgate/internal/gateway/session"
	"github.com/canopyml/appgate/pkg/ttlcache"
)

func newManager(ttl time.Duration) *session.Manager {
	return &session.Manager{
		Sessions: ttlcache.New[string](),
		TTL:      ttl,
		Prefix:   "/console",
	}
}

func TestMintAndValidate(t *testing.T) {
	t.Parallel()

	m := newManager(time.Minute)
	credential := m.Mint("jupyter-abc")
	require.NotEmpty(t, credential)

	require.True(t, m.Validate(credential, "jupyter-abc"))
}

func TestCredentialBoundToApplication(t *testing.T) {
	t.Parallel()

	m := newManager(time.Minute)
	credential := m.Mint("jupyter-abc")

	require.False(t, m.Validate(credential, "mlflow-xyz"))
	require.True(t, m.Validate(credential, "jupyter-abc"))
}

func TestUnknownCredential(t *testing.T) {
	t.Parallel()

	m := newManager(time.Minute)
	require.False(t, m.Validate("never-minted", "jupyter-abc"))
	require.False(t, m.Validate("", "jupyter-abc"))
}

func TestSlidingExpiry(t *testing.T) {
	t.Parallel()

	m := newManager(40 * time.Millisecond)
	credential := m.Mint("jupyter-abc")

	// Keep touching inside the TTL; the credential must outlive several
	// full TTLs of wall time.
	for range 4 {
		time.Sleep(20 * time.Millisecond)
		require.True(t, m.Validate(credential, "jupyter-abc"))
	}

	time.Sleep(60 * time.Millisecond)
	require.False(t, m.Validate(credential, "jupyter-abc"))
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	m := newManager(time.Minute)
	credential := m.Mint("jupyter-abc")
	m.Revoke(credential)

	require.False(t, m.Validate(credential, "jupyter-abc"))
}

func TestConcurrentMintsAreDistinct(t *testing.T) {
	t.Parallel()

	m := newManager(time.Minute)
	a := m.Mint("jupyter-abc")
	b := m.Mint("jupyter-abc")

	require.NotEqual(t, a, b)
	require.True(t, m.Validate(a, "jupyter-abc"))
	require.True(t, m.Validate(b, "jupyter-abc"))
}

func TestCookiePath(t *testing.T) {
	t.Parallel()

	m := newManager(time.Minute)
	require.Equal(t, "/console/apps/jupyter-abc/", m.CookiePath("jupyter-abc"))
}
