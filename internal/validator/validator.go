// Package validator provides request validation using go-playground/validator.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator with custom configuration.
type Validator struct {
	v *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(e.Message)
	}
	return sb.String()
}

// New creates a new Validator instance with custom tag name and validations.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names for field names in errors, falling back to mapstructure
	// names so config sections report the same keys as the YAML file.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		}
		return name
	})

	_ = v.RegisterValidation("leasekey", validateLeaseKey)

	return &Validator{v: v}
}

const (
	// MaxLeaseKeyLength bounds resource keys accepted by the API.
	MaxLeaseKeyLength = 256
	// MaxStoreKeyLength bounds raw store keys, which carry the lock key prefix.
	MaxStoreKeyLength = 512
)

// ValidLeaseKey reports whether key can name a guarded resource: non-empty,
// at most MaxLeaseKeyLength bytes, with no whitespace, control characters or slashes.
func ValidLeaseKey(key string) bool {
	return validKey(key, MaxLeaseKeyLength)
}

// ValidStoreKey is ValidLeaseKey with the longer MaxStoreKeyLength bound.
func ValidStoreKey(key string) bool {
	return validKey(key, MaxStoreKeyLength)
}

func validKey(key string, maxLen int) bool {
	if key == "" || len(key) > maxLen {
		return false
	}
	for _, r := range key {
		if r == '/' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func validateLeaseKey(fl validator.FieldLevel) bool {
	return ValidLeaseKey(fl.Field().String())
}

// Validate validates the given struct and returns ValidationErrors if invalid.
func (v *Validator) Validate(i interface{}) error {
	err := v.v.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	// Convert to ValidationErrors
	var errs ValidationErrors
	for _, e := range fieldErrs {
		errs = append(errs, ValidationError{
			Field:   e.Field(),
			Tag:     e.Tag(),
			Value:   fmt.Sprintf("%v", e.Value()),
			Message: formatErrorMessage(e),
		})
	}

	return errs
}

// formatErrorMessage generates a human-readable error message.
func formatErrorMessage(e validator.FieldError) string {
	field := e.Field()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, strings.ReplaceAll(e.Param(), " ", " is "))
	case "leasekey":
		return fmt.Sprintf("%s must be 1-%d characters without whitespace or '/'", field, MaxLeaseKeyLength)
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}
