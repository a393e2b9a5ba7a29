// Package engine provides the core types and interfaces for the Atelier scheduling engine.
// It defines the solve pipeline: Problem -> Model -> Solve -> Schedule -> Metrics.
package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for reporting and exit handling.
type ErrorClass string

const (
	// ErrorClassValidation indicates a malformed or inconsistent problem document.
	// Examples: missing due dates, negative durations, out-of-range machine ids.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassModel indicates the problem could not be compiled into a solver model.
	// Examples: horizon overflow, proto construction failure.
	ErrorClassModel ErrorClass = "model"

	// ErrorClassSolver indicates the solver process itself failed.
	// A proven-infeasible model is not a solver error; it is a Result status.
	ErrorClassSolver ErrorClass = "solver"

	// ErrorClassPolicy indicates the admission policy rejected the request.
	ErrorClassPolicy ErrorClass = "policy"

	// ErrorClassIO indicates a failure reading or writing problem documents.
	ErrorClassIO ErrorClass = "io"

	// ErrorClassInternal indicates an engine defect.
	// Examples: a decoded schedule violating its own invariants.
	ErrorClassInternal ErrorClass = "internal"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource identifies the entity that caused the error (job, machine, file), if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the pipeline phase being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Resource != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (resource=%s, operation=%s): %s",
			e.Class, e.Message, e.Resource, e.Operation, e.unwrapMessage())
	}
	if e.Resource != "" {
		return fmt.Sprintf("[%s] %s (resource=%s): %s",
			e.Class, e.Message, e.Resource, e.unwrapMessage())
	}
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Class, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// unwrapMessage returns the error message from the underlying error chain.
func (e *EngineError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassValidation,
		Message: message,
		Err:     err,
	}
}

// NewModelError creates a new model construction error.
func NewModelError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassModel,
		Message: message,
		Err:     err,
	}
}

// NewSolverError creates a new solver error.
func NewSolverError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassSolver,
		Message: message,
		Err:     err,
	}
}

// NewPolicyError creates a new policy rejection error.
func NewPolicyError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPolicy,
		Message: message,
		Err:     err,
	}
}

// NewIOError creates a new input/output error.
func NewIOError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassIO,
		Message: message,
		Err:     err,
	}
}

// NewInternalError creates a new internal engine error.
func NewInternalError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassInternal,
		Message: message,
		Err:     err,
	}
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resource string) *EngineError {
	e.Resource = resource
	return e
}

// WithOperation adds pipeline phase context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsValidation returns true if the error is classified as a validation error.
func IsValidation(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassValidation
	}
	return false
}

// IsModel returns true if the error is classified as a model construction error.
func IsModel(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassModel
	}
	return false
}

// IsSolver returns true if the error is classified as a solver error.
func IsSolver(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassSolver
	}
	return false
}

// IsPolicy returns true if the error is classified as a policy rejection.
func IsPolicy(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPolicy
	}
	return false
}

// IsIO returns true if the error is classified as an input/output error.
func IsIO(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassIO
	}
	return false
}

// IsInternal returns true if the error is classified as an internal defect.
func IsInternal(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassInternal
	}
	return false
}

// IsUserError returns true if the error was caused by the request rather than
// the engine. Validation failures and policy rejections are user errors.
func IsUserError(err error) bool {
	return IsValidation(err) || IsPolicy(err)
}

// Common error codes.
const (
	ErrCodeEmptyJobs        = "EMPTY_JOBS"
	ErrCodeDueCountMismatch = "DUE_COUNT_MISMATCH"
	ErrCodeReleaseMismatch  = "RELEASE_COUNT_MISMATCH"
	ErrCodeBadMachine       = "BAD_MACHINE"
	ErrCodeBadDuration      = "BAD_DURATION"
	ErrCodeBadDueDate       = "BAD_DUE_DATE"
	ErrCodeBadRelease       = "BAD_RELEASE"
	ErrCodeBadForm          = "BAD_OPERATION_FORM"
	ErrCodeRaggedJobs       = "RAGGED_JOBS"
	ErrCodeBadStage         = "BAD_STAGE"
	ErrCodeBadSetup         = "BAD_SETUP"
	ErrCodeBadScale         = "BAD_TIME_SCALE"
	ErrCodeBadBudget        = "BAD_TIME_LIMIT"
	ErrCodeHorizonOverflow  = "HORIZON_OVERFLOW"
	ErrCodeModelInvalid     = "MODEL_INVALID"
	ErrCodeSolveFailed      = "SOLVE_FAILED"
	ErrCodePolicyDenied     = "POLICY_DENIED"
	ErrCodeInconsistent     = "INCONSISTENT_SCHEDULE"
	ErrCodeUnknownBackend   = "UNKNOWN_BACKEND"
	ErrCodeParse            = "PARSE_ERROR"
	ErrCodeSchema           = "SCHEMA_ERROR"
	ErrCodeCanceled         = "CANCELED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)
