package engine

import (
	"errors"
	"fmt"
)

// Standard engine errors
var (
	// ErrValidationFailed is returned when a model fails validation
	ErrValidationFailed = errors.New("model validation failed")

	// ErrConnectionFailed is returned when a connection attempt fails
	ErrConnectionFailed = errors.New("connection failed")

	// ErrQueryFailed is returned when a source engine rejects a query
	ErrQueryFailed = errors.New("query execution failed")

	// ErrTargetWriteFailed is returned when a target DDL or DML statement fails
	ErrTargetWriteFailed = errors.New("target write failed")

	// ErrUnsupportedEngine is returned when an engine name is not in the
	// supported set
	ErrUnsupportedEngine = errors.New("unsupported engine")
)

// ValidationError is returned when a model definition is missing required
// fields. It is raised before any I/O takes place.
type ValidationError struct {
	ModelName string
	Reason    string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.ModelName != "" {
		return fmt.Sprintf("validation failed for model '%s': %s", e.ModelName, e.Reason)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// Is checks if the error is ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return errors.Is(target, ErrValidationFailed)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(modelName, reason string) *ValidationError {
	return &ValidationError{ModelName: modelName, Reason: reason}
}

// ConnectionError is returned when a source or target connection cannot be
// established.
type ConnectionError struct {
	Engine string
	Cause  error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Engine, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is ErrConnectionFailed.
func (e *ConnectionError) Is(target error) bool {
	if errors.Is(target, ErrConnectionFailed) {
		return true
	}
	return errors.Is(e.Cause, target)
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(engineName string, cause error) *ConnectionError {
	return &ConnectionError{Engine: engineName, Cause: cause}
}

// QueryError is returned when a source engine rejects a query.
type QueryError struct {
	Engine string
	Query  string
	Cause  error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed on %s: %v", e.Engine, e.Cause)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is ErrQueryFailed.
func (e *QueryError) Is(target error) bool {
	if errors.Is(target, ErrQueryFailed) {
		return true
	}
	return errors.Is(e.Cause, target)
}

// NewQueryError creates a new QueryError.
func NewQueryError(engineName, query string, cause error) *QueryError {
	return &QueryError{Engine: engineName, Query: query, Cause: cause}
}

// TargetWriteError is returned when table creation, index creation or data
// insertion fails on the target warehouse.
type TargetWriteError struct {
	Engine    string
	Operation string
	Table     string
	Cause     error
}

// Error implements the error interface.
func (e *TargetWriteError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s failed on %s table %s: %v", e.Operation, e.Engine, e.Table, e.Cause)
	}
	return fmt.Sprintf("%s failed on %s: %v", e.Operation, e.Engine, e.Cause)
}

// Unwrap returns the underlying error.
func (e *TargetWriteError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is ErrTargetWriteFailed.
func (e *TargetWriteError) Is(target error) bool {
	if errors.Is(target, ErrTargetWriteFailed) {
		return true
	}
	return errors.Is(e.Cause, target)
}

// NewTargetWriteError creates a new TargetWriteError.
func NewTargetWriteError(engineName, operation, table string, cause error) *TargetWriteError {
	return &TargetWriteError{Engine: engineName, Operation: operation, Table: table, Cause: cause}
}

// UnsupportedEngineError is returned when an engine name is not part of the
// supported enumeration.
type UnsupportedEngineError struct {
	Engine string
	Role   string
}

// Error implements the error interface.
func (e *UnsupportedEngineError) Error() string {
	return fmt.Sprintf("unsupported %s engine: %s", e.Role, e.Engine)
}

// Is checks if the error is ErrUnsupportedEngine.
func (e *UnsupportedEngineError) Is(target error) bool {
	return errors.Is(target, ErrUnsupportedEngine)
}

// NewUnsupportedEngineError creates a new UnsupportedEngineError.
func NewUnsupportedEngineError(role, engineName string) *UnsupportedEngineError {
	return &UnsupportedEngineError{Engine: engineName, Role: role}
}

// IsValidationError checks if an error indicates a failed model validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}

// IsConnectionError checks if an error is a connection error.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// IsQueryError checks if an error is a query execution error.
func IsQueryError(err error) bool {
	return errors.Is(err, ErrQueryFailed)
}

// IsTargetWriteError checks if an error is a target write error.
func IsTargetWriteError(err error) bool {
	return errors.Is(err, ErrTargetWriteFailed)
}

// IsUnsupportedEngine checks if an error indicates an unknown engine name.
func IsUnsupportedEngine(err error) bool {
	return errors.Is(err, ErrUnsupportedEngine)
}
