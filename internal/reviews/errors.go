package reviews

import (
	"errors"
	"fmt"
)

var (
	// ErrBusinessNotFound means the referenced business does not exist
	// (or the existence check could not be completed).
	ErrBusinessNotFound = errors.New("business not found")

	// ErrForbidden means the caller supplied no identity, or an identity
	// that does not match the review's owner. Distinct from not-found so
	// clients can tell "doesn't exist" from "not yours".
	ErrForbidden = errors.New("not the review owner")
)

// ValidationError names the offending field of a create/update payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalidField(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
