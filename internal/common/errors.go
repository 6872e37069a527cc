package common

import (
	"errors"
	"fmt"
	"strings"
)

// Common error types used across the application
var (
	// ErrInvalidInput indicates invalid caller input
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates a record was not found in the store
	ErrNotFound = errors.New("not found")
	// ErrPolicyViolation indicates a robots.txt or allowlist refusal
	ErrPolicyViolation = errors.New("policy violation")
	// ErrActivationDenied indicates an asset does not meet activation requirements
	ErrActivationDenied = errors.New("activation denied")
	// ErrNoTocFound indicates an adapter could not locate any table of contents
	ErrNoTocFound = errors.New("no table of contents found")
	// ErrInvalidConfiguration indicates configuration issues
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// WrapError wraps an error with additional context information
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf wraps an error with formatted context information
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// NewError creates a new error with a formatted message
func NewError(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// ValidationError represents validation errors with field-specific information
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ConfigurationError represents configuration-related errors
type ConfigurationError struct {
	Section string
	Field   string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Section != "" && e.Field != "" {
		return fmt.Sprintf("configuration error in section '%s', field '%s': %s", e.Section, e.Field, e.Reason)
	} else if e.Section != "" {
		return fmt.Sprintf("configuration error in section '%s': %s", e.Section, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(section, field, reason string) *ConfigurationError {
	return &ConfigurationError{
		Section: section,
		Field:   field,
		Reason:  reason,
	}
}

// NetworkError represents network-related errors
type NetworkError struct {
	URL     string
	Reason  string
	Wrapped error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error for URL '%s': %s", e.URL, e.Reason)
}

func (e *NetworkError) Unwrap() error {
	return e.Wrapped
}

// NewNetworkError creates a new network error
func NewNetworkError(url, reason string, wrapped error) *NetworkError {
	return &NetworkError{
		URL:     url,
		Reason:  reason,
		Wrapped: wrapped,
	}
}

// HTTPError represents a completed request with a non-2xx status
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *HTTPError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("HTTP %d error for URL '%s': %s", e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("HTTP %d error: %s", e.StatusCode, e.Message)
}

// NewHTTPErrorWithURL creates a new HTTP error with URL context
func NewHTTPErrorWithURL(statusCode int, message, url string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		URL:        url,
	}
}

// PolicyError is returned when robots.txt or the domain allowlist refuses a URL
type PolicyError struct {
	URL    string
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy violation for URL '%s': %s", e.URL, e.Reason)
}

func (e *PolicyError) Unwrap() error {
	return ErrPolicyViolation
}

// NewPolicyError creates a new policy error
func NewPolicyError(url, reason string) *PolicyError {
	return &PolicyError{URL: url, Reason: reason}
}

// ActivationError explains why an asset could not be activated
type ActivationError struct {
	AssetID string
	Reason  string
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("cannot activate asset '%s': %s", e.AssetID, e.Reason)
}

func (e *ActivationError) Unwrap() error {
	return ErrActivationDenied
}

// NewActivationError creates a new activation error
func NewActivationError(assetID, reason string) *ActivationError {
	return &ActivationError{AssetID: assetID, Reason: reason}
}

// CombineErrors combines multiple errors into a single error with formatted message
func CombineErrors(errs []error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}

	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}

	messages := make([]string, 0, len(nonNil))
	for _, err := range nonNil {
		messages = append(messages, err.Error())
	}
	return fmt.Errorf("multiple errors occurred: [%s]", strings.Join(messages, "; "))
}

// ErrorCollector helps collect multiple errors during processing
type ErrorCollector struct {
	errors []error
}

// Add adds an error to the collector
func (ec *ErrorCollector) Add(err error) {
	if err != nil {
		ec.errors = append(ec.errors, err)
	}
}

// AddWithContext adds an error with additional context
func (ec *ErrorCollector) AddWithContext(err error, context string) {
	if err != nil {
		ec.errors = append(ec.errors, WrapError(err, context))
	}
}

// HasErrors returns true if any errors were collected
func (ec *ErrorCollector) HasErrors() bool {
	return len(ec.errors) > 0
}

// Error returns a combined error from all collected errors
func (ec *ErrorCollector) Error() error {
	return CombineErrors(ec.errors)
}

// Messages returns the collected errors as plain strings
func (ec *ErrorCollector) Messages() []string {
	out := make([]string, 0, len(ec.errors))
	for _, err := range ec.errors {
		out = append(out, err.Error())
	}
	return out
}
