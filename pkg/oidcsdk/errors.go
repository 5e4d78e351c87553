package oidcsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// OAuth2 error codes per RFC 6749.
const (
	ErrorCodeInvalidRequest  = "invalid_request"
	ErrorCodeInvalidClient   = "invalid_client"
	ErrorCodeInvalidGrant    = "invalid_grant"
	ErrorCodeInvalidScope    = "invalid_scope"
	ErrorCodeInvalidToken    = "invalid_token"
	ErrorCodeAccessDenied    = "access_denied"
	ErrorCodeServerError     = "server_error"
	ErrorCodeUnauthorized    = "unauthorized_client"
	ErrorCodeUnsupportedType = "unsupported_grant_type"
)

// ErrNonceMismatch is returned by Exchange when the ID token's nonce claim
// does not match the value from the authorization request. It means the
// callback was not initiated by this gateway's login redirect.
var ErrNonceMismatch = errors.New("oidcsdk: id_token nonce mismatch")

// ProviderError is a non-200 response from the provider's token endpoint,
// parsed as an RFC 6749 error body where possible.
type ProviderError struct {
	// StatusCode is the HTTP status the provider returned.
	StatusCode int

	// Code is the OAuth2 error code, or empty if the body was not a
	// standard error document.
	Code string

	// Description is the human-readable error description. When the body
	// was not parseable it holds the raw body, truncated.
	Description string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// IsInvalidGrant reports whether err is a provider rejection of the
// presented grant: an expired or revoked refresh token, a consumed
// authorization code, or a scope the client no longer holds. These all
// mean the user must log in again rather than that something failed.
func IsInvalidGrant(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Code == ErrorCodeInvalidGrant || pe.Code == ErrorCodeInvalidScope
}

func parseProviderError(statusCode int, body []byte) *ProviderError {
	var doc struct {
		Code        string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &doc); err == nil && doc.Code != "" {
		return &ProviderError{
			StatusCode:  statusCode,
			Code:        doc.Code,
			Description: doc.Description,
		}
	}

	desc := strings.TrimSpace(string(body))
	if len(desc) > 200 {
		desc = desc[:200]
	}
	return &ProviderError{StatusCode: statusCode, Description: desc}
}
