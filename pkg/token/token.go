// Package token provides read-only access to the claims of a bearer token.
//
// Parsing here does NOT verify the token signature. A Token is a fast claim
// view for decisions that were already gated by a provider round-trip (code
// exchange or refresh grant); it must never be the sole basis for trusting
// a credential that arrived from the network.
package token

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed reports a value that is not a decodable three-segment
// compact JWT with a JSON payload.
var ErrMalformed = errors.New("token: malformed bearer token")

type roleSet struct {
	Roles []string `json:"roles"`
}

// payload covers the registered claims plus the nested role claims the
// identity provider emits (realm_access / resource_access).
type payload struct {
	jwt.RegisteredClaims

	PreferredUsername string             `json:"preferred_username,omitempty"`
	Email             string             `json:"email,omitempty"`
	RealmAccess       roleSet            `json:"realm_access,omitempty"`
	ResourceAccess    map[string]roleSet `json:"resource_access,omitempty"`
}

// Token is an immutable view over a bearer token's claims. It is constructed
// per-request from a cookie or header value and discarded afterwards.
type Token struct {
	raw               string
	subject           string
	preferredUsername string
	email             string
	expiresAt         time.Time
	roles             []string
	audienceClientID  string
}

// Parse decodes the payload segment of raw without verifying its signature.
// expectedAudience is the client ID used to resolve bare role names in
// HasRole; it is not checked against the token's aud claim here.
func Parse(raw, expectedAudience string) (Token, error) {
	var p payload
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &p); err != nil {
		return Token{}, ErrMalformed
	}

	t := Token{
		raw:               raw,
		subject:           p.Subject,
		preferredUsername: p.PreferredUsername,
		email:             p.Email,
		audienceClientID:  expectedAudience,
	}
	if p.ExpiresAt != nil {
		t.expiresAt = p.ExpiresAt.Time
	}

	// Flatten the nested role claims into "<scope>:<role>" form so role
	// checks are a plain membership test.
	for _, r := range p.RealmAccess.Roles {
		t.roles = append(t.roles, "realm:"+r)
	}
	for app, rs := range p.ResourceAccess {
		for _, r := range rs.Roles {
			t.roles = append(t.roles, app+":"+r)
		}
	}

	return t, nil
}

// Raw returns the original token string.
func (t Token) Raw() string { return t.raw }

// Subject returns the sub claim.
func (t Token) Subject() string { return t.subject }

// PreferredUsername returns the preferred_username claim.
func (t Token) PreferredUsername() string { return t.preferredUsername }

// Email returns the email claim.
func (t Token) Email() string { return t.email }

// ExpiresAt returns the exp claim. A token without exp reports the zero
// time and is therefore always expired.
func (t Token) ExpiresAt() time.Time { return t.expiresAt }

// ExpiresUnix returns the exp claim in epoch seconds.
func (t Token) ExpiresUnix() int64 {
	if t.expiresAt.IsZero() {
		return 0
	}
	return t.expiresAt.Unix()
}

// IsExpired reports whether the token's exp claim has passed.
func (t Token) IsExpired() bool {
	return t.isExpiredAt(time.Now())
}

// ExpiresWithin reports whether the token expires within the given margin
// from now. A larger margin never flips the result from true to false.
func (t Token) ExpiresWithin(margin time.Duration) bool {
	return t.expiresWithinAt(time.Now(), margin)
}

func (t Token) isExpiredAt(now time.Time) bool {
	return !now.Before(t.expiresAt)
}

func (t Token) expiresWithinAt(now time.Time, margin time.Duration) bool {
	return t.isExpiredAt(now.Add(margin))
}

// Roles returns the flattened role list.
func (t Token) Roles() []string {
	return slices.Clone(t.roles)
}

// HasRole reports whether the token carries the named role. A bare name is
// resolved against the expected audience client; a "realm:" prefix names a
// realm-level role; any other "<app>:<role>" form names that application's
// role directly.
func (t Token) HasRole(name string) bool {
	if !strings.Contains(name, ":") {
		if t.audienceClientID == "" {
			return false
		}
		name = t.audienceClientID + ":" + name
	}
	return slices.Contains(t.roles, name)
}
