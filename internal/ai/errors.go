package ai

import (
	"errors"
	"fmt"
)

// ServiceError marks a failure talking to the model service itself, as
// opposed to a business-level outcome like a low validity score. Callers
// treat it as transient and retry.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ai %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsServiceError reports whether err is, or wraps, a ServiceError.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
