package definition

import (
	"errors"
	"fmt"
)

// MetadataError indicates a definition was fetched and parsed but does not
// carry the metadata required to route an activity. The condition is
// permanent for the cached catalog generation.
type MetadataError struct {
	DefinitionID string
	ActivityID   string
	Reason       string
}

// Error implements error.
func (e *MetadataError) Error() string {
	return fmt.Sprintf("definition metadata missing: %v, definition: %v, activity: %v",
		e.Reason, e.DefinitionID, e.ActivityID)
}

// IsMetadataError returns true when err wraps a MetadataError.
func IsMetadataError(err error) bool {
	var metadataErr *MetadataError
	return errors.As(err, &metadataErr)
}

// FetchError indicates the definition document could not be obtained from its
// source. The condition is transient; nothing is cached and the next lookup
// retries.
type FetchError struct {
	DefinitionID string
	Err          error
}

// Error implements error.
func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch definition: %v, %v", e.DefinitionID, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError returns true when err wraps a FetchError.
func IsFetchError(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}
