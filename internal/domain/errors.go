package domain

import (
	"fmt"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/pkg/errors"
)

// Sentinel errors for errors.Is checks across layers.
var (
	ErrUnreachable    = errors.New("backend unreachable")
	ErrSessionExpired = errors.New("session expired")
	ErrConflict       = errors.New("duplicate submission")
	ErrBadCache       = errors.New("malformed cache entry")
	ErrNotFound       = errors.New("not found")
)

// ErrorKind classifies a transport failure the way the sync engine and the
// facade need to react to it.
type ErrorKind int

const (
	// KindUnreachable covers network errors and 5xx responses. Retryable.
	KindUnreachable ErrorKind = iota
	// KindSessionExpired is a 401 that survived a refresh attempt.
	KindSessionExpired
	// KindClient is any other 4xx. Not retryable.
	KindClient
	// KindConflict is a 409, which idempotent submission treats as success.
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindSessionExpired:
		return "session_expired"
	case KindClient:
		return "client_error"
	case KindConflict:
		return "conflict"
	}
	return "unknown"
}

// APIError is the single error type the HTTP client returns for non-2xx
// outcomes. StatusCode is 0 when no HTTP response was received.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (%d %s)", e.Kind, e.Message, e.StatusCode, e.Endpoint)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Endpoint)
}

// Is maps kinds onto the sentinel errors so callers can use errors.Is
// without inspecting the struct.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnreachable:
		return e.Kind == KindUnreachable
	case ErrSessionExpired:
		return e.Kind == KindSessionExpired
	case ErrConflict:
		return e.Kind == KindConflict
	}
	return false
}

func IsUnreachable(err error) bool    { return errors.Is(err, ErrUnreachable) }
func IsSessionExpired(err error) bool { return errors.Is(err, ErrSessionExpired) }
func IsConflict(err error) bool       { return errors.Is(err, ErrConflict) }

// IsClientError reports whether err is a non-retryable 4xx.
func IsClientError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == KindClient
	}
	return false
}
