package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	msg := "configuration validation failed:"
	for _, err := range e {
		msg += fmt.Sprintf("\n  - %s", err.Error())
	}
	return msg
}

// HasErrors returns true if there are any validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator is a function that validates configuration and returns errors
type Validator func() ValidationErrors

// Validate runs multiple validators and combines their errors
func Validate(validators ...Validator) error {
	var allErrors ValidationErrors
	for _, validator := range validators {
		allErrors = append(allErrors, validator()...)
	}
	if len(allErrors) > 0 {
		return allErrors
	}
	return nil
}

// RequireNonEmpty validates that a string field is not empty
func RequireNonEmpty(field, value string) *ValidationError {
	if value == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// RequirePositiveDuration validates that a duration field is positive
func RequirePositiveDuration(field string, value time.Duration) *ValidationError {
	if value <= 0 {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be positive, got %v", value),
		}
	}
	return nil
}

// RequireDuration validates that value parses as a positive duration
func RequireDuration(field, value string) *ValidationError {
	d, err := ParseDuration(value)
	if err != nil {
		return &ValidationError{Field: field, Message: err.Error()}
	}
	return RequirePositiveDuration(field, d)
}

// RequireValidPort validates that a port number is valid (1-65535)
func RequireValidPort(field string, value uint16) *ValidationError {
	if value == 0 {
		return &ValidationError{Field: field, Message: "port must be between 1 and 65535"}
	}
	return nil
}

// RequireOneOf validates that a value is one of the allowed values
func RequireOneOf(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of %v, got %q", allowed, value),
	}
}

// RequireMinLength validates that a string has a minimum length
func RequireMinLength(field, value string, minLength int) *ValidationError {
	if len(value) < minLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be at least %d characters, got %d", minLength, len(value)),
		}
	}
	return nil
}

// CollectErrors returns the non-nil errors as ValidationErrors
func CollectErrors(errors ...*ValidationError) ValidationErrors {
	var result ValidationErrors
	for _, err := range errors {
		if err != nil {
			result = append(result, *err)
		}
	}
	return result
}
