// Package domain defines core types, interfaces, and errors for the safe
// query engine.
package domain

import "fmt"

// InvalidIdentifierError indicates a table or column name failed validation
// or collides with a reserved keyword.
type InvalidIdentifierError struct {
	Message string
}

func (e *InvalidIdentifierError) Error() string { return e.Message }

// UnsupportedFormatError indicates an ingestion source kind the engine
// does not understand.
type UnsupportedFormatError struct {
	Message string
}

func (e *UnsupportedFormatError) Error() string { return e.Message }

// MalformedInputError indicates source bytes that could not be decoded.
type MalformedInputError struct {
	Message string
}

func (e *MalformedInputError) Error() string { return e.Message }

// EmptyDatasetError indicates a source that decoded to zero records.
type EmptyDatasetError struct {
	Message string
}

func (e *EmptyDatasetError) Error() string { return e.Message }

// AlreadyExistsError indicates a table name that is already registered.
type AlreadyExistsError struct {
	Message string
}

func (e *AlreadyExistsError) Error() string { return e.Message }

// NotFoundError indicates a table or column that does not exist in the catalog.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// QueryRejectedError indicates the guard refused a query before it reached
// the backing store. Reason is one of the stable Reason* codes.
type QueryRejectedError struct {
	Reason  RejectReason
	Message string
}

func (e *QueryRejectedError) Error() string {
	return fmt.Sprintf("query rejected (%s): %s", e.Reason, e.Message)
}

// ExecutionError indicates the backing store accepted the query text from
// the guard but failed at runtime (e.g. unknown column). It is returned as
// data; a failed query must never take the engine down.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string { return e.Message }

// RateLimitedError indicates a caller exceeded its query rate budget.
type RateLimitedError struct {
	Message string
}

func (e *RateLimitedError) Error() string { return e.Message }

// ErrInvalidIdentifier creates an InvalidIdentifierError with a formatted message.
func ErrInvalidIdentifier(format string, args ...interface{}) *InvalidIdentifierError {
	return &InvalidIdentifierError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnsupportedFormat creates an UnsupportedFormatError with a formatted message.
func ErrUnsupportedFormat(format string, args ...interface{}) *UnsupportedFormatError {
	return &UnsupportedFormatError{Message: fmt.Sprintf(format, args...)}
}

// ErrMalformedInput creates a MalformedInputError with a formatted message.
func ErrMalformedInput(format string, args ...interface{}) *MalformedInputError {
	return &MalformedInputError{Message: fmt.Sprintf(format, args...)}
}

// ErrEmptyDataset creates an EmptyDatasetError with a formatted message.
func ErrEmptyDataset(format string, args ...interface{}) *EmptyDatasetError {
	return &EmptyDatasetError{Message: fmt.Sprintf(format, args...)}
}

// ErrAlreadyExists creates an AlreadyExistsError with a formatted message.
func ErrAlreadyExists(format string, args ...interface{}) *AlreadyExistsError {
	return &AlreadyExistsError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrQueryRejected creates a QueryRejectedError with the given reason code.
func ErrQueryRejected(reason RejectReason, format string, args ...interface{}) *QueryRejectedError {
	return &QueryRejectedError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ErrExecution creates an ExecutionError with a formatted message.
func ErrExecution(format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{Message: fmt.Sprintf(format, args...)}
}

// ErrRateLimited creates a RateLimitedError with a formatted message.
func ErrRateLimited(format string, args ...interface{}) *RateLimitedError {
	return &RateLimitedError{Message: fmt.Sprintf(format, args...)}
}
