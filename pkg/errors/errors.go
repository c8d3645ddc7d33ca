// Package errors defines error types and utilities for mythix-orm-solr
package errors

import (
	"errors"
	"fmt"
)

// Common errors that can occur in mythix-orm-solr operations
var (
	// ErrNotStarted is returned when an operation is attempted before Start
	ErrNotStarted = errors.New("connection not started")

	// ErrUnsupportedOperation is returned for operations Solr cannot perform (DDL, schema changes)
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrUnsupportedOperator is returned when a query operator has no Lucene translation
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrUnsupportedAggregate is returned when an aggregate request cannot be translated
	ErrUnsupportedAggregate = errors.New("unsupported aggregate")

	// ErrAggregateUnavailable is returned when the store response carries no numeric aggregate result
	ErrAggregateUnavailable = errors.New("aggregate result unavailable")

	// ErrMissingRequiredField is returned when a record lacks a required field
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrMissingPrimaryKey is returned when an update or destroy has no primary key to work with
	ErrMissingPrimaryKey = errors.New("missing primary key")

	// ErrInvalidModel is returned when a model struct is invalid
	ErrInvalidModel = errors.New("invalid model")

	// ErrInvalidQuery is returned when a query cannot be consumed as given
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNotFound is returned when a document is not found in the index
	ErrNotFound = errors.New("document not found")

	// ErrInvalidTag is returned when a struct tag is invalid
	ErrInvalidTag = errors.New("invalid struct tag")

	// ErrRowsClosed is returned when a closed result set is advanced
	ErrRowsClosed = errors.New("rows closed")
)

// SolrORMError represents a detailed error with context
type SolrORMError struct {
	Op      string         // Operation that failed
	Model   string         // Model type name
	Err     error          // Underlying error
	Context map[string]any // Additional context
}

// Error implements the error interface
func (e *SolrORMError) Error() string {
	return fmt.Sprintf("mythix-orm-solr: %s operation failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *SolrORMError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target error
func (e *SolrORMError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new SolrORMError
func NewError(op, model string, err error) *SolrORMError {
	return &SolrORMError{
		Op:    op,
		Model: model,
		Err:   err,
	}
}

// NewErrorWithContext creates a new SolrORMError with context
func NewErrorWithContext(op, model string, err error, context map[string]any) *SolrORMError {
	return &SolrORMError{
		Op:      op,
		Model:   model,
		Err:     err,
		Context: context,
	}
}

// IsNotStarted checks if an error indicates the connection was never started
func IsNotStarted(err error) bool {
	return errors.Is(err, ErrNotStarted)
}

// IsUnsupported checks if an error indicates an operation Solr cannot perform
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedOperation)
}

// IsNotFound checks if an error indicates a document was not found
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
