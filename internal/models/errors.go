package models

import (
	"errors"
	"fmt"
)

// Stable error categories surfaced to API callers
const (
	CategoryInvalidRequest      = "invalid_request"
	CategoryInvalidArea         = "invalid_area"
	CategoryCityNotFound        = "city_not_found"
	CategoryConfiguration       = "configuration_error"
	CategoryUpstreamUnavailable = "upstream_unavailable"
	CategoryBadUpstream         = "bad_upstream_response"
	CategoryMissingData         = "missing_data"
	CategoryNotFound            = "not_found"
	CategoryInternal            = "internal_error"
)

// CategorizedError is implemented by every error in the taxonomy
type CategorizedError interface {
	error
	Category() string
	IsTransient() bool
}

// CategoryOf returns the category of err, or CategoryInternal for unclassified errors
func CategoryOf(err error) string {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category()
	}
	return CategoryInternal
}

// ValidationError represents bad user input
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Code    string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Category returns the error code, defaulting to invalid_request
func (e *ValidationError) Category() string {
	if e.Code == "" {
		return CategoryInvalidRequest
	}
	return e.Code
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// NewCityNotFoundError builds the validation error for an unknown city
func NewCityNotFoundError(city string) *ValidationError {
	return &ValidationError{
		Field:   "city",
		Value:   city,
		Message: "City not found",
		Code:    CategoryCityNotFound,
	}
}

// NotFoundError represents a resource missing from an in-process registry or store
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Category() string { return CategoryNotFound }

func (e *NotFoundError) IsTransient() bool {
	return false
}

// ConfigurationError signals a deployment inconsistency, such as a city whose
// model was never loaded
type ConfigurationError struct {
	Model   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Category() string { return CategoryConfiguration }

func (e *ConfigurationError) IsTransient() bool {
	return false
}

// UpstreamUnavailableError means the weather provider could not be reached or
// answered with a non-success status
type UpstreamUnavailableError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamUnavailableError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s unavailable", e.Provider)
	}
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

func (e *UpstreamUnavailableError) Category() string { return CategoryUpstreamUnavailable }

func (e *UpstreamUnavailableError) IsTransient() bool {
	return true
}

// BadUpstreamResponseError means the provider answered successfully but the
// payload lacked the expected shape
type BadUpstreamResponseError struct {
	Provider string
	Message  string
	Err      error
}

func (e *BadUpstreamResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *BadUpstreamResponseError) Unwrap() error { return e.Err }

func (e *BadUpstreamResponseError) Category() string { return CategoryBadUpstream }

func (e *BadUpstreamResponseError) IsTransient() bool {
	return false
}

// MissingDataError reports an absent field or index in an hourly series
type MissingDataError struct {
	Field string
	Index int
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("incomplete weather data: %s[%d] missing", e.Field, e.Index)
}

func (e *MissingDataError) Category() string { return CategoryMissingData }

func (e *MissingDataError) IsTransient() bool {
	return false
}
