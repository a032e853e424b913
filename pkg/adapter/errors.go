package adapter

import (
	"errors"
	"fmt"

	"github.com/databridge-io/databridge/pkg/dbcapabilities"
)

// Standard adapter errors
var (
	// ErrConnectionFailed is returned when a connection attempt fails
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConnectionClosed is returned when attempting to use a closed connection
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrQueryFailed is returned when a query or command fails on the backend
	ErrQueryFailed = errors.New("query failed")

	// ErrOperationFailed is returned when a non-query backend operation fails
	ErrOperationFailed = errors.New("operation failed")

	// ErrTransactionFailed is returned when a transaction fails on the backend
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrValidation is returned on misuse of the API contract, e.g. a wrong
	// parameter count or an operation on a terminal transaction
	ErrValidation = errors.New("validation error")

	// ErrOperationNotSupported is returned when the engine's capability set
	// lacks the requested operation
	ErrOperationNotSupported = errors.New("operation not supported by this database")

	// ErrPoolTimeout is returned when connection acquisition exceeds its budget
	ErrPoolTimeout = errors.New("timed out waiting for a pooled connection")

	// ErrPoolClosed is returned when acquiring from a drained pool
	ErrPoolClosed = errors.New("connection pool is closed")

	// ErrResourceLimitExceeded is returned when the live-connection ceiling is hit
	ErrResourceLimitExceeded = errors.New("resource limit exceeded")

	// ErrCircuitOpen is returned while the circuit breaker refuses calls
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrEmergencyShutdown is returned after the emergency flag is set; only a
	// manual reset recovers
	ErrEmergencyShutdown = errors.New("emergency shutdown is active")

	// ErrInvalidConfiguration is returned when the configuration is invalid
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// DatabaseError wraps backend-specific errors with additional context.
// This provides a consistent error structure across all database types.
type DatabaseError struct {
	DatabaseType dbcapabilities.DatabaseID
	Operation    string
	Cause        error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.DatabaseType, e.Operation, e.Cause)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error.
func (e *DatabaseError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// NewDatabaseError creates a new DatabaseError.
func NewDatabaseError(dbType dbcapabilities.DatabaseID, operation string, cause error) *DatabaseError {
	return &DatabaseError{
		DatabaseType: dbType,
		Operation:    operation,
		Cause:        cause,
	}
}

// UnsupportedOperationError is returned when an operation is absent from the
// engine's declared capability set. It is produced before any backend I/O.
type UnsupportedOperationError struct {
	DatabaseType dbcapabilities.DatabaseID
	Operation    string
	Reason       string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s does not support %s: %s", e.DatabaseType, e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s does not support %s", e.DatabaseType, e.Operation)
}

// Is checks if the error is ErrOperationNotSupported.
func (e *UnsupportedOperationError) Is(target error) bool {
	return errors.Is(target, ErrOperationNotSupported)
}

// NewUnsupportedOperationError creates a new UnsupportedOperationError.
func NewUnsupportedOperationError(dbType dbcapabilities.DatabaseID, operation string, reason string) *UnsupportedOperationError {
	return &UnsupportedOperationError{
		DatabaseType: dbType,
		Operation:    operation,
		Reason:       reason,
	}
}

// ValidationError reports misuse of the API contract, detected before any
// backend I/O is attempted.
type ValidationError struct {
	Operation string
	Reason    string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
}

// Is checks if the error is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return errors.Is(target, ErrValidation)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(operation string, reason string) *ValidationError {
	return &ValidationError{Operation: operation, Reason: reason}
}

// ConnectionError is returned when a connection error occurs.
type ConnectionError struct {
	DatabaseType dbcapabilities.DatabaseID
	Host         string
	Port         int
	Cause        error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s at %s:%d: %v", e.DatabaseType, e.Host, e.Port, e.Cause)
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
func NewConnectionError(dbType dbcapabilities.DatabaseID, host string, port int, cause error) *ConnectionError {
	return &ConnectionError{
		DatabaseType: dbType,
		Host:         host,
		Port:         port,
		Cause:        cause,
	}
}

// ConfigurationError is returned when a configuration error occurs.
type ConfigurationError struct {
	DatabaseType dbcapabilities.DatabaseID
	Field        string
	Reason       string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for %s: field '%s': %s", e.DatabaseType, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration for %s: %s", e.DatabaseType, e.Reason)
}

// Is checks if the error is ErrInvalidConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return errors.Is(target, ErrInvalidConfiguration)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(dbType dbcapabilities.DatabaseID, field string, reason string) *ConfigurationError {
	return &ConfigurationError{
		DatabaseType: dbType,
		Field:        field,
		Reason:       reason,
	}
}

// WrapError wraps an error with database context.
// If the error is already a DatabaseError, it returns it as-is.
func WrapError(dbType dbcapabilities.DatabaseID, operation string, err error) error {
	if err == nil {
		return nil
	}

	// Don't double-wrap
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return err
	}

	return NewDatabaseError(dbType, operation, err)
}

// IsUnsupported checks if an error indicates an unsupported operation.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrOperationNotSupported)
}

// IsValidation checks if an error indicates API-contract misuse.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConnectionError checks if an error is a connection error.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// IsRejection reports whether an error is a pre-execution rejection
// (resource limit, open circuit, emergency shutdown) rather than an
// execution failure. Rejections must not feed the circuit breaker.
func IsRejection(err error) bool {
	return errors.Is(err, ErrResourceLimitExceeded) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrEmergencyShutdown)
}
