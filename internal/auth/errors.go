package auth

import "errors"

var (
	// ErrMissingCredential is returned when no token or exchange id was presented.
	ErrMissingCredential = errors.New("no session token provided")
	// ErrInvalidCredential is returned when a token or exchange id is not recognized.
	ErrInvalidCredential = errors.New("invalid session")
	// ErrSessionExpired is returned for a known session past its expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrUserNotFound is returned when a session references a missing user.
	ErrUserNotFound = errors.New("user not found")
	// ErrUpstreamTimeout is returned when the identity exchange did not answer in time.
	ErrUpstreamTimeout = errors.New("authentication service timeout")
	// ErrUpstreamUnavailable is returned when the identity exchange could not be reached.
	ErrUpstreamUnavailable = errors.New("authentication service unavailable")
	// ErrMalformedUpstreamResponse is returned when the exchange answered with an unusable body.
	// Errors of this kind also match ErrUpstreamUnavailable.
	ErrMalformedUpstreamResponse = errors.New("malformed authentication service response")
	// ErrInternal wraps unexpected store or serialization faults.
	ErrInternal = errors.New("internal error")

	// ErrUserExists is returned by UserStore.CreateUser when the email is already taken.
	ErrUserExists = errors.New("user already exists")
)

// malformed builds an error matching both ErrMalformedUpstreamResponse and ErrUpstreamUnavailable.
func malformed(detail string) error {
	return errors.Join(ErrUpstreamUnavailable, ErrMalformedUpstreamResponse, errors.New(detail))
}

// Kind returns a stable machine-readable code for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrUpstreamTimeout):
		return "upstream_timeout"
	case errors.Is(err, ErrMalformedUpstreamResponse):
		return "malformed_upstream_response"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "internal"
	}
}
