package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrMissingParam is returned when a required request parameter is empty.
	ErrMissingParam = errors.New("missing required parameter")

	// ErrValidation wraps field validation failures; see ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNoRecords is returned when an export or report matches nothing.
	ErrNoRecords = errors.New("no records found")

	// ErrTooManyImports is returned when no import slot frees up in time.
	ErrTooManyImports = errors.New("too many imports in progress, please try again later")

	// ErrArchiveTooLarge is returned for uploads over the configured limit.
	ErrArchiveTooLarge = errors.New("archive exceeds the maximum upload size")

	// ErrInvalidToken is returned for unknown, expired or mismatched links.
	ErrInvalidToken = errors.New("link is invalid or has expired")

	// ErrInvalidTransition is returned when a payment or registration is
	// not in a state that allows the requested change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateAbsence is returned when a reason was already submitted
	// for the roll number on that day.
	ErrDuplicateAbsence = errors.New("absence reason already submitted for this date")
)

func missing(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingParam, name)
}

// ValidationError lists every failed field of one request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+" "+msg)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// fromValidator converts validator/v10 errors. Other errors pass through.
func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		ve.Fields[fe.Field()] = describe(fe)
	}
	return ve
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " item(s)"
	case "datetime":
		return "must be a date in " + fe.Param() + " form"
	case "e164", "numeric":
		return "must be a phone number"
	}
	return "is invalid (" + fe.Tag() + ")"
}
