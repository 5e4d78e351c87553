package auth

import "time"

// State is what the gate learned about the requester. It is populated
// once per request and handed to whatever handler runs next.
type State struct {
	UserID    string
	Username  string
	Thumbnail string

	// IsAdmin is true when the access token carries the realm admin role.
	IsAdmin bool

	AccessTokenExp  time.Time
	RefreshTokenExp time.Time

	// NewAccessToken is set when the gate silently refreshed the token
	// set during this request. Handlers that forward the access token
	// upstream must prefer it over the request cookie.
	NewAccessToken string
}

// AccessToken returns the token a handler should act with: the refreshed
// one when a silent refresh happened, otherwise fromCookie.
func (s State) AccessToken(fromCookie string) string {
	if s.NewAccessToken != "" {
		return s.NewAccessToken
	}
	return fromCookie
}
