// Package idx generates ULID identifiers, used for correlating log lines
// of one request across the middleware chain and the proxy.
package idx

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a canonical (uppercase Crockford base32) ULID string.
type ID string

// Zero is the zero value ID; only useful as a placeholder.
const Zero ID = ""

// ErrInvalid reports a malformed ULID string.
var ErrInvalid = errors.New("idx: invalid ulid")

var (
	globalOnce sync.Once
	global     *generator
)

// generator produces monotonic ULIDs safely across goroutines.
type generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newGenerator() *generator {
	return &generator{
		entropy: ulid.Monotonic(ulid.DefaultEntropy(), 0),
	}
}

func (g *generator) newAt(t time.Time) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ID(ulid.MustNew(ulid.Timestamp(t), g.entropy).String())
}

func defaultGenerator() *generator {
	globalOnce.Do(func() { global = newGenerator() })
	return global
}

// New returns a fresh ID for the current time.
func New() ID {
	return NewAt(time.Now().UTC())
}

// NewAt returns a fresh ID bound to the given timestamp.
func NewAt(t time.Time) ID {
	return defaultGenerator().newAt(t)
}

// Parse validates s and returns it in canonical form.
func Parse(s string) (ID, error) {
	u, err := ulid.ParseStrict(strings.ToUpper(s))
	if err != nil {
		return Zero, ErrInvalid
	}
	return ID(u.String()), nil
}

// IsZero reports whether the ID is the zero value.
func (id ID) IsZero() bool { return id == Zero }

// String returns the canonical string form.
func (id ID) String() string { return string(id) }

// Time extracts the embedded UTC timestamp, or the zero time for invalid
// or zero IDs.
func (id ID) Time() time.Time {
	if id.IsZero() {
		return time.Time{}
	}

	u, err := ulid.ParseStrict(id.String())
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}

// Compare reports the lexical ordering between a and b: -1, 0 or +1.
// ULIDs sort by creation time, so this orders IDs chronologically.
func Compare(a, b ID) int {
	return strings.Compare(a.String(), b.String())
}
