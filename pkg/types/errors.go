package types

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeAuthorization ErrorType = "authorization"
	ErrorTypeCrypto        ErrorType = "crypto"
	ErrorTypeChain         ErrorType = "chain"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeIntegrity     ErrorType = "integrity"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeInternal      ErrorType = "internal"
)

// MediChainError represents a structured error in the MediChain system
type MediChainError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *MediChainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *MediChainError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeInvalidProofType     = "INVALID_PROOF_TYPE"
	ErrCodeDocumentTooLarge     = "DOCUMENT_TOO_LARGE"
	ErrCodeInvalidAddress       = "INVALID_ADDRESS"
	ErrCodeInvalidExpiration    = "INVALID_EXPIRATION"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeKeyInitFailed        = "KEY_INIT_FAILED"
	ErrCodeSigningFailed        = "SIGNING_FAILED"
	ErrCodeIntegrityViolation   = "INTEGRITY_VIOLATION"
	ErrCodeInsufficientFunds    = "INSUFFICIENT_FUNDS"
	ErrCodeNonceConflict        = "NONCE_CONFLICT"
	ErrCodeGasLimit             = "GAS_LIMIT"
	ErrCodeChainError           = "CHAIN_ERROR"
	ErrCodePendingConfirmation  = "PENDING_CONFIRMATION"
	ErrCodeStorageUnavailable   = "STORAGE_UNAVAILABLE"
	ErrCodeConfigurationInvalid = "CONFIGURATION_INVALID"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *MediChainError {
	return &MediChainError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *MediChainError {
	return &MediChainError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(code, message string) *MediChainError {
	return &MediChainError{
		Type:    ErrorTypeAuthorization,
		Code:    code,
		Message: message,
	}
}

// NewCryptoError creates a new cryptographic error
func NewCryptoError(code, message string, cause error) *MediChainError {
	return &MediChainError{
		Type:    ErrorTypeCrypto,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewChainError creates a new blockchain error
func NewChainError(code, message string, cause error) *MediChainError {
	return &MediChainError{
		Type:    ErrorTypeChain,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewStorageError creates a new storage gateway error
func NewStorageError(message string, cause error) *MediChainError {
	return &MediChainError{
		Type:    ErrorTypeStorage,
		Code:    ErrCodeStorageUnavailable,
		Message: message,
		Cause:   cause,
	}
}

// NewIntegrityError creates a new integrity violation error
func NewIntegrityError(message string, details map[string]interface{}) *MediChainError {
	return &MediChainError{
		Type:    ErrorTypeIntegrity,
		Code:    ErrCodeIntegrityViolation,
		Message: message,
		Details: details,
	}
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(message string) *MediChainError {
	return &MediChainError{
		Type:    ErrorTypeConfiguration,
		Code:    ErrCodeConfigurationInvalid,
		Message: message,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(code, message string, cause error) *MediChainError {
	return &MediChainError{
		Type:    ErrorTypeTimeout,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *MediChainError {
	return &MediChainError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsErrorCode reports whether err is a MediChainError carrying the given code
func IsErrorCode(err error, code string) bool {
	var mcErr *MediChainError
	if errors.As(err, &mcErr) {
		return mcErr.Code == code
	}
	return false
}

// IsErrorType reports whether err is a MediChainError of the given type
func IsErrorType(err error, errType ErrorType) bool {
	var mcErr *MediChainError
	if errors.As(err, &mcErr) {
		return mcErr.Type == errType
	}
	return false
}
