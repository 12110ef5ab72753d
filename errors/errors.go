package errors

import "fmt"

var (
	ErrWorkerPanic          = fmt.Errorf("worker panic")
	ErrUnauthenticated      = fmt.Errorf("unauthenticated")
	ErrInvalidChannel       = fmt.Errorf("invalid channel name")
	ErrTransportUnavailable = fmt.Errorf("transport unavailable")
	ErrForbidden            = fmt.Errorf("forbidden")
	ErrInvalidRole          = fmt.Errorf("role not allowed")
	ErrTokenGeneration      = fmt.Errorf("token generation failed")
)

// MissingFieldError names the first missing field of an incomplete
// dispatch request.
type MissingFieldError struct {
	Field string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("missing field: %s", e.Field)
}
