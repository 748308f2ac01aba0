// internal/chat/errors.go
package chat

import "errors"

var (
	// ErrAuthRequired short-circuits operations that need an
	// authenticated user before any store call is made.
	ErrAuthRequired = errors.New("sign in required")

	// ErrNotFound marks a barter request that does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrForbidden marks access to a thread the user is not part of.
	ErrForbidden = errors.New("not a participant of this conversation")
)

// ValidationError is rejected input. It never reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
