package domain

import "errors"

var (
	// ErrInvalidArgument marks malformed or out-of-range client input.
	// It is never retried automatically.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStoreUnavailable marks a spatial store that could not be reached
	// or failed to answer a query.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ErrorKind returns the stable, client-facing name of an error class.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal_error"
	}
}
