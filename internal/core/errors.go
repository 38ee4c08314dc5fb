package core

import (
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the outermost *Error in err's chain, or
// "UNKNOWN" when there is none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "UNKNOWN"
}

// Predefined errors
var (
	// Catalog errors
	ErrCatalogLoad         = &Error{Code: "CATALOG_LOAD_FAILED", Message: "event catalog failed to load"}
	ErrInvalidVocabulary   = &Error{Code: "INVALID_VOCABULARY", Message: "value outside controlled vocabulary"}
	ErrScoring             = &Error{Code: "SCORING_FAILED", Message: "match scoring failed"}
	ErrEnrichment          = &Error{Code: "ENRICHMENT_FAILED", Message: "price series enrichment failed"}
	ErrProviderUnavailable = &Error{Code: "PROVIDER_UNAVAILABLE", Message: "market data provider unavailable"}
	ErrClassification      = &Error{Code: "CLASSIFICATION_FAILED", Message: "headline classification failed"}

	// Data errors
	ErrNotFound = &Error{Code: "NOT_FOUND", Message: "record not found"}
	ErrNoData   = &Error{Code: "NO_DATA", Message: "no data available"}

	// Storage errors
	ErrStorageFailed = &Error{Code: "STORAGE_FAILED", Message: "storage operation failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// API errors
	ErrInvalidRequest = &Error{Code: "INVALID_REQUEST", Message: "request body invalid"}
	ErrUnauthorized   = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}

	// LLM errors
	ErrLLMFailed  = &Error{Code: "LLM_FAILED", Message: "LLM request failed"}
	ErrLLMTimeout = &Error{Code: "LLM_TIMEOUT", Message: "LLM request timeout"}
)
