package authority

import "errors"

// Failure classes surfaced to the sync engine. Every error returned by
// the client wraps exactly one of these, so callers classify with
// errors.Is and never inspect status codes themselves.
var (
	// ErrUnavailable marks connectivity failures: the call never
	// completed, or the authority reported itself unhealthy.
	ErrUnavailable = errors.New("authority unavailable")

	// ErrUnauthorized marks 401-class responses: the credential is
	// missing server-side trust and must be reissued.
	ErrUnauthorized = errors.New("authority rejected credential")

	// ErrProtocol marks responses the client refuses to apply: non-success
	// statuses after the call was accepted, and payloads that fail schema
	// validation.
	ErrProtocol = errors.New("authority protocol error")
)
