package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Engine-wide error taxonomy. Every error returned by the core packages
// matches exactly one of these with errors.Is (ErrTimeout may additionally
// match the fault that was outstanding when the deadline hit).
var (
	// ErrUnreachable indicates a network failure or timeout. Reads also
	// report a hub that answered 5xx, 408 or 429 this way; commands do not.
	ErrUnreachable = errors.New("hub: unreachable")

	// ErrAuthInvalid indicates the API key is wrong or has been revoked.
	ErrAuthInvalid = errors.New("hub: credential invalid")

	// ErrAuthRejected indicates the hub refused the PIN.
	ErrAuthRejected = errors.New("hub: pin rejected")

	// ErrNotFound indicates a referenced activity, entity, dock or credential does not exist.
	ErrNotFound = errors.New("hub: not found")

	// ErrProtocol indicates the hub answered with a shape this client does not understand.
	ErrProtocol = errors.New("hub: unexpected response")

	// ErrCommandFailed indicates the hub accepted the request but reported a command failure.
	ErrCommandFailed = errors.New("hub: command failed")

	// ErrTimeout indicates the caller's deadline expired while work was outstanding.
	ErrTimeout = errors.New("hub: deadline exceeded")
)

// FaultKind distinguishes the three ways a transport call can fail.
type FaultKind int

const (
	// FaultUnreachable is a network-level failure: refused, reset, DNS, timeout.
	FaultUnreachable FaultKind = iota + 1

	// FaultHTTP is a non-2xx response.
	FaultHTTP

	// FaultProtocol is a response body that could not be decoded.
	FaultProtocol
)

// String returns the fault kind name.
func (k FaultKind) String() string {
	switch k {
	case FaultUnreachable:
		return "unreachable"
	case FaultHTTP:
		return "http"
	case FaultProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Fault is the error value raised by a Transport.
type Fault struct {
	Kind FaultKind

	// Method and Path identify the failed request.
	Method string
	Path   string

	// StatusCode is set for FaultHTTP.
	StatusCode int

	// Code and Message carry the hub's error body when it sent one.
	Code    string
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (f *Fault) Error() string {
	where := f.Method + " " + f.Path
	switch f.Kind {
	case FaultHTTP:
		if f.Message != "" {
			return fmt.Sprintf("%s: http %d: %s", where, f.StatusCode, f.Message)
		}
		return fmt.Sprintf("%s: http %d", where, f.StatusCode)
	default:
		if f.Err != nil {
			return fmt.Sprintf("%s: %s: %v", where, f.Kind, f.Err)
		}
		return fmt.Sprintf("%s: %s", where, f.Kind)
	}
}

// Unwrap returns the underlying cause.
func (f *Fault) Unwrap() error {
	return f.Err
}

// Is lets network and protocol faults match their sentinels directly.
func (f *Fault) Is(target error) bool {
	switch target {
	case ErrUnreachable:
		return f.Kind == FaultUnreachable
	case ErrProtocol:
		return f.Kind == FaultProtocol
	}
	return false
}

// Transient reports whether repeating the same read may succeed: the
// network failed, or the hub answered that it is busy.
func (f *Fault) Transient() bool {
	switch f.Kind {
	case FaultUnreachable:
		return true
	case FaultHTTP:
		return f.StatusCode >= http.StatusInternalServerError ||
			f.StatusCode == http.StatusRequestTimeout ||
			f.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// AuthFailure reports whether the hub refused the supplied credentials.
func (f *Fault) AuthFailure() bool {
	return f.Kind == FaultHTTP &&
		(f.StatusCode == http.StatusUnauthorized || f.StatusCode == http.StatusForbidden)
}

// NotFound reports whether the hub answered 404.
func (f *Fault) NotFound() bool {
	return f.Kind == FaultHTTP && f.StatusCode == http.StatusNotFound
}

// Classify maps a transport error from a read into the engine taxonomy.
//
// If ctx is already done the caller's deadline fired and the result is
// ErrTimeout. Otherwise transient faults become ErrUnreachable,
// authentication failures become authErr and everything else becomes
// terminalErr. The original fault stays in the chain for errors.As.
func Classify(ctx context.Context, err error, authErr, terminalErr error) error {
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var f *Fault
	if !errors.As(err, &f) {
		return fmt.Errorf("%w: %w", terminalErr, err)
	}

	switch {
	case f.Transient():
		return fmt.Errorf("%w: %w", ErrUnreachable, f)
	case f.AuthFailure():
		return fmt.Errorf("%w: %w", authErr, f)
	default:
		return fmt.Errorf("%w: %w", terminalErr, f)
	}
}

// ClassifyCommand maps a transport error from a command into the engine
// taxonomy. Only network faults become ErrUnreachable. Any HTTP error
// status other than 401/403, 5xx included, becomes ErrCommandFailed.
func ClassifyCommand(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	f, ok := AsFault(err)
	switch {
	case !ok:
		return fmt.Errorf("%w: %w", ErrCommandFailed, err)
	case f.Kind == FaultUnreachable:
		return fmt.Errorf("%w: %w", ErrUnreachable, f)
	case f.AuthFailure():
		return fmt.Errorf("%w: %w", ErrAuthInvalid, f)
	default:
		return fmt.Errorf("%w: %w", ErrCommandFailed, f)
	}
}

// AsFault extracts the Fault from an error chain.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// ErrorCode returns a short snake_case name for the taxonomy error err
// matches, for metrics labels and machine-readable replies. Unclassified
// errors are "internal".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrAuthInvalid):
		return "auth_invalid"
	case errors.Is(err, ErrAuthRejected):
		return "auth_rejected"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCommandFailed):
		return "command_failed"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	default:
		return "internal"
	}
}
