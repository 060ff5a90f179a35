// Package businessflow contains the use cases behind the plan, recommendation and scrape endpoints
package businessflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/term-insurance-analyzer/app/scraper"
	"github.com/go-playground/validator/v10"
)

// Business flow error constants
var (
	// Plan-related errors
	ErrPlanNotFound       = errors.New("plan not found")
	ErrPlanAlreadyExists  = errors.New("plan with the same provider and name already exists")
	ErrPlanUpdateRequired = errors.New("at least one field must be provided for update")
	ErrPlanIDRequired     = errors.New("plan ID is required")
	ErrExportFailed       = errors.New("failed to build plans export")

	// Compare errors
	ErrNotEnoughPlansToCompare = errors.New("at least two known plans are required to compare")

	// Chat errors
	ErrChatMessageRequired = errors.New("chat message must not be blank")

	// Scrape errors
	ErrScrapeInProgress = scraper.ErrScrapeInProgress

	// Filter errors
	ErrInvalidLimit = errors.New("limit must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// FieldError is one rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports input that breaks a record invariant, field by field
type ValidationError struct {
	Fields []FieldError
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError builds a single-field validation error around a sentinel
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}, Err: err}
}

// ValidationErrorFrom converts validator output into a ValidationError.
// It returns nil when err carries no validator.ValidationErrors.
func ValidationErrorFrom(err error) *ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: FieldErrorMessage(fe)})
	}
	return &ValidationError{Fields: fields}
}

// FieldErrorMessage renders a validator failure as a readable sentence
func FieldErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "gt":
		return err.Field() + " must be greater than " + err.Param()
	case "gte":
		return err.Field() + " must be greater than or equal to " + err.Param()
	case "lte":
		return err.Field() + " must be less than or equal to " + err.Param()
	case "gtefield":
		return err.Field() + " must not be less than " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "url":
		return err.Field() + " must be a valid URL"
	default:
		return err.Field() + " is invalid"
	}
}

func IsPlanNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound)
}

func IsPlanAlreadyExists(err error) bool {
	return errors.Is(err, ErrPlanAlreadyExists)
}

func IsPlanUpdateRequired(err error) bool {
	return errors.Is(err, ErrPlanUpdateRequired)
}

func IsPlanIDRequired(err error) bool {
	return errors.Is(err, ErrPlanIDRequired)
}

func IsNotEnoughPlansToCompare(err error) bool {
	return errors.Is(err, ErrNotEnoughPlansToCompare)
}

func IsScrapeInProgress(err error) bool {
	return errors.Is(err, ErrScrapeInProgress)
}

func IsInvalidLimit(err error) bool {
	return errors.Is(err, ErrInvalidLimit)
}

// IsValidationError reports whether err carries field-level validation detail
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidationError extracts the field-level detail from err, nil when absent
func AsValidationError(err error) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}
