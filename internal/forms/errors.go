package forms

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownFieldType       = errors.New("unknown field type")
	ErrFieldTypeImmutable     = errors.New("field type cannot change after the field has been saved")
	ErrFieldNotFound          = errors.New("field not found")
	ErrFieldDeprecated        = errors.New("field is deprecated and can no longer be edited")
	ErrOptionNotFound         = errors.New("option not found")
	ErrLastActiveOption       = errors.New("cannot remove the last active option")
	ErrDuplicateFieldID       = errors.New("duplicate field id")
	ErrDuplicateOptionValue   = errors.New("duplicate option value")
	ErrIndexOutOfRange        = errors.New("index out of range")
	ErrValidationFailed       = errors.New("validation failed")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("modified by another session")
)

// ValidationError is returned when submission values fail the compiled contract.
// FieldErrors is keyed by field id.
type ValidationError struct {
	FieldErrors map[string]string `json:"field_errors"`
}

func (e *ValidationError) Error() string {
	ids := make([]string, 0, len(e.FieldErrors))
	for id := range e.FieldErrors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %s", id, e.FieldErrors[id]))
	}
	return fmt.Sprintf("%s (%s)", ErrValidationFailed.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}
