// Package errors provides the error taxonomy shared by the orchestration services.
// Every error surfaced by the domain layer wraps one of the sentinel categories below
// so callers can classify failures with errors.Is regardless of the message.
package errors

import (
	"errors"
	"fmt"
)

// Standard error categories
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input was provided
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the caller does not own the resource
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState indicates the resource is not in a state that allows the action
	ErrInvalidState = errors.New("invalid state")

	// ErrStepExecution indicates an operation step failed against an external collaborator
	ErrStepExecution = errors.New("step execution failed")

	// ErrUnsupportedOperationType indicates no step template exists for the operation type
	ErrUnsupportedOperationType = errors.New("unsupported operation type")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrServiceUnavailable indicates a dependency is temporarily unavailable
	ErrServiceUnavailable = errors.New("service unavailable")
)

// DomainError represents a domain-specific error with additional context
type DomainError struct {
	Err     error
	Code    string
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *DomainError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// NotFoundError creates a not found error
func NotFoundError(resource string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Code:    fmt.Sprintf("%s_NOT_FOUND", resource),
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// ValidationError creates a validation error
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// UnauthorizedError creates an unauthorized error
func UnauthorizedError(message string) *DomainError {
	return &DomainError{
		Err:     ErrUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: message,
	}
}

// InvalidStateError creates an error for an action attempted from a disallowed state
func InvalidStateError(resource, reason string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidState,
		Code:    "INVALID_STATE",
		Message: fmt.Sprintf("%s: %s", resource, reason),
	}
}

// StepExecutionError wraps the collaborator failure of a single step
func StepExecutionError(stepType string, err error) *DomainError {
	de := &DomainError{
		Err:     ErrStepExecution,
		Code:    "STEP_EXECUTION_FAILED",
		Message: fmt.Sprintf("step %s failed", stepType),
		Details: map[string]interface{}{
			"step_type": stepType,
		},
	}
	if err != nil {
		de.Message = fmt.Sprintf("step %s failed: %v", stepType, err)
		de.Details["cause"] = err.Error()
	}
	return de
}

// UnsupportedOperationTypeError creates an error for an unknown operation type
func UnsupportedOperationTypeError(operationType string) *DomainError {
	return &DomainError{
		Err:     ErrUnsupportedOperationType,
		Code:    "UNSUPPORTED_OPERATION_TYPE",
		Message: fmt.Sprintf("unsupported operation type: %s", operationType),
	}
}

// InternalError creates an internal error; the cause stays visible in the message
func InternalError(message string, err error) *DomainError {
	de := &DomainError{
		Err:     ErrInternal,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if err != nil {
		de.Message = fmt.Sprintf("%s: %v", message, err)
		de.Details = map[string]interface{}{
			"cause": err.Error(),
		}
	}
	return de
}

// ServiceUnavailableError creates a service unavailable error
func ServiceUnavailableError(service string, err error) *DomainError {
	de := &DomainError{
		Err:     ErrServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: fmt.Sprintf("%s service is temporarily unavailable", service),
	}
	if err != nil {
		de.Details = map[string]interface{}{
			"cause": err.Error(),
		}
	}
	return de
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if an error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsInvalidState checks if an error is an invalid state error
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsStepExecution checks if an error is a step execution error
func IsStepExecution(err error) bool {
	return errors.Is(err, ErrStepExecution)
}

// IsUnsupportedOperationType checks if an error is an unsupported operation type error
func IsUnsupportedOperationType(err error) bool {
	return errors.Is(err, ErrUnsupportedOperationType)
}

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

// IsServiceUnavailable checks if an error is a service unavailable error
func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetErrorDetails extracts details from a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}
