package auth

// DecisionKind enumerates gate outcomes.
type DecisionKind int

const (
	// KindContinue means the request is authenticated; proceed.
	KindContinue DecisionKind = iota
	// KindRedirect sends the browser elsewhere, usually to login.
	KindRedirect
	// KindRespond terminates the request with a fixed response.
	KindRespond
	// KindFail is an internal or provider failure the handler must map
	// to an error response.
	KindFail
)

// Decision is the gate's verdict on a request. Handlers execute it with
// a small switch rather than the gate writing responses itself, so the
// same gate serves both page navigations and JSON endpoints.
type Decision struct {
	Kind DecisionKind

	// Location is the redirect target for KindRedirect.
	Location string

	// Status and Body describe the response for KindRespond.
	Status int
	Body   any

	// Err is the failure for KindFail.
	Err error
}

// Continue authenticated successfully.
func Continue() Decision {
	return Decision{Kind: KindContinue}
}

// Redirect sends the browser to location.
func Redirect(location string) Decision {
	return Decision{Kind: KindRedirect, Location: location}
}

// Respond terminates with a fixed status and JSON body.
func Respond(status int, body any) Decision {
	return Decision{Kind: KindRespond, Status: status, Body: body}
}

// Fail reports an internal or provider failure.
func Fail(err error) Decision {
	return Decision{Kind: KindFail, Err: err}
}
