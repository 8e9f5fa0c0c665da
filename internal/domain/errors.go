package domain

import "fmt"

// StructuralError marks a precondition failure that makes a run unexecutable
// (empty strategy, unknown block kind, no referenced tokens). It is fatal:
// callers abort the run immediately.
type StructuralError struct {
	Message string
}

func (e *StructuralError) Error() string {
	return e.Message
}

// NewStructuralError builds a StructuralError from a format string.
func NewStructuralError(format string, args ...any) *StructuralError {
	return &StructuralError{Message: fmt.Sprintf(format, args...)}
}

// DataError marks missing or unusable market data. Recoverable at step level
// (skip and warn); fatal only when no step of a run is usable.
type DataError struct {
	Message string
}

func (e *DataError) Error() string {
	return e.Message
}

// NewDataError builds a DataError from a format string.
func NewDataError(format string, args ...any) *DataError {
	return &DataError{Message: fmt.Sprintf(format, args...)}
}
