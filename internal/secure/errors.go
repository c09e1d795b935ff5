package secure

import "errors"

// Sentinel errors classifying why a protected mutation attempt failed.
// Mutators wrap these with %w so the executor can pick the retry behavior
// without knowing the transport underneath.
var (
	// ErrInvalidInput means the payload failed validation before any
	// attempt was made.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTransientConflict means the attempt hit a recoverable conflict
	// (stale connection, expired claim mid-flight) and may be retried.
	ErrTransientConflict = errors.New("transient conflict")
	// ErrAuthorityFailure means the backing authority refused or broke in
	// a way retrying will not fix.
	ErrAuthorityFailure = errors.New("authority failure")
	// ErrMalformedResponse means the authority reported success but the
	// response did not carry a valid success marker.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrAlreadyInFlight means the principal already has this mutation
	// running.
	ErrAlreadyInFlight = errors.New("mutation already in flight")
)

// Rejection reasons surfaced on terminal attempts.
const (
	ReasonInvalidInput      = "invalid-input"
	ReasonTransientConflict = "transient-conflict"
	ReasonAuthorityFailure  = "authority-failure"
	ReasonMalformedResponse = "malformed-response"
	ReasonAlreadyInFlight   = "already-in-flight"
)

// Classify maps an attempt error onto a rejection reason. Anything the
// mutator did not classify counts as an authority failure: unknown errors
// never earn a retry.
func Classify(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return ReasonInvalidInput
	case errors.Is(err, ErrTransientConflict):
		return ReasonTransientConflict
	case errors.Is(err, ErrMalformedResponse):
		return ReasonMalformedResponse
	case errors.Is(err, ErrAlreadyInFlight):
		return ReasonAlreadyInFlight
	default:
		return ReasonAuthorityFailure
	}
}
