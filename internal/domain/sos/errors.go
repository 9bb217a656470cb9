package sos

import "errors"

var (
	// ErrUnauthenticated is returned when an operation has no verified caller.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrPermissionDenied is returned when the caller lacks the required role.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidArgument is returned when a request misses required fields.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when the target record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyClaimed is returned when an alert has left the open state.
	ErrAlreadyClaimed = errors.New("alert already accepted or resolved")
)

// ErrorKind classifies errors so callers can decide whether to retry.
type ErrorKind int

const (
	// KindTransient covers store or transport unavailability; retrying may help.
	KindTransient ErrorKind = iota
	// KindUnauthenticated means no verified caller.
	KindUnauthenticated
	// KindPermissionDenied means the caller lacks the role.
	KindPermissionDenied
	// KindInvalidArgument means the request is malformed.
	KindInvalidArgument
	// KindNotFound means the target does not exist.
	KindNotFound
	// KindAlreadyClaimed means the alert is no longer open.
	KindAlreadyClaimed
)

// String returns a stable label used in logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindPermissionDenied:
		return "permission_denied"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindAlreadyClaimed:
		return "already_claimed"
	default:
		return "transient"
	}
}

// Retryable reports whether an error of this kind may succeed on retry.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient
}

// Kind classifies err. Unknown errors are treated as transient.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyClaimed):
		return KindAlreadyClaimed
	default:
		return KindTransient
	}
}
