package auth

// Cookie names shared between the gate and the OIDC handlers. All of
// these are signed; the session credential cookie lives in the session
// package and is not.
const (
	CookieAccessToken  = "accessToken"
	CookieRefreshToken = "refreshToken"
	CookieUsername     = "username"
	CookieThumbnail    = "thumbnail"
	CookieNonce        = "oidc.nonce"
	CookieAPIToken     = "apiToken"
)
