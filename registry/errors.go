package registry

import (
	"errors"
	"fmt"

	"github.com/taskgrid/taskgrid/model"
)

// NotFoundError indicates no endpoint is known for a service identity.
type NotFoundError struct {
	Key model.ServiceKey
}

// Error implements error.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("service endpoint not found: %v", e.Key)
}

// IsNotFound returns true when err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
