package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeExtraction    = "EXTRACTION_ERROR"
	ErrCodeGeneration    = "GENERATION_ERROR"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidItemType      = NewDomainError(ErrCodeValidation, "invalid knowledge item type")
	ErrInvalidItemStatus    = NewDomainError(ErrCodeValidation, "invalid knowledge item status")
	ErrInvalidMessageRole   = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrInvalidLeadStatus    = NewDomainError(ErrCodeValidation, "invalid lead status")
	ErrInvalidJobStatus     = NewDomainError(ErrCodeValidation, "invalid job status")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyContactInfo     = NewDomainError(ErrCodeValidation, "contact info has no email, phone or name")
)

// Not found errors
var (
	ErrTenantNotFound       = NewDomainError(ErrCodeNotFound, "tenant not found")
	ErrItemNotFound         = NewDomainError(ErrCodeNotFound, "knowledge item not found")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
	ErrLeadNotFound         = NewDomainError(ErrCodeNotFound, "lead not found")
)

// Extraction errors
var (
	ErrUnsupportedFormat = NewDomainError(ErrCodeExtraction, "unsupported file format")
	ErrFileNotFound      = NewDomainError(ErrCodeExtraction, "source file not found")
	ErrFetchFailed       = NewDomainError(ErrCodeExtraction, "failed to fetch url")
	ErrNoContent         = NewDomainError(ErrCodeExtraction, "no content could be extracted")
)

// Generation errors
var (
	ErrGenerationBackend = NewDomainError(ErrCodeGeneration, "generation backend failure")
	ErrEmbeddingBackend  = NewDomainError(ErrCodeGeneration, "embedding backend failure")
)

// Concurrency errors
var (
	ErrItemAlreadyClaimed = NewDomainError(ErrCodeConflict, "knowledge item already claimed for processing")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Invalid state transition errors
var (
	ErrLeadStatusTransition = NewDomainError(ErrCodeValidation, "invalid lead status transition")
	ErrItemNotFailed        = NewDomainError(ErrCodeValidation, "only failed or ready items can be reprocessed")
)
