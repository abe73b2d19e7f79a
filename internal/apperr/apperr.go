// Package apperr defines the typed error kinds used across the memory
// engine. Each kind carries an HTTP-relevant status code via Status(), so
// the transport edge (internal/api) can map any error to a response with a
// single errors.As switch instead of re-deriving status codes ad hoc.
//
// This generalizes the teacher's entity.ErrNotFound/entity.ErrDuplicateID
// shape (internal/entity/store.go) from two sentinels to the six kinds
// required by §7 of the specification.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// NotFound indicates a requested entity does not exist.
type NotFound struct {
	Resource string
	ID       string
}

func (e *NotFound) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: not found", e.Resource)
	}
	return fmt.Sprintf("%s %s: not found", e.Resource, e.ID)
}

// Status implements the statusError interface.
func (e *NotFound) Status() int { return http.StatusNotFound }

// NewNotFound builds a NotFound error for resource/id.
func NewNotFound(resource, id string) error {
	return &NotFound{Resource: resource, ID: id}
}

// Validation indicates a malformed request payload: a range violation
// (confidence outside [0,1]) or a missing required field.
type Validation struct {
	Field   string
	Message string
}

func (e *Validation) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *Validation) Status() int { return http.StatusUnprocessableEntity }

// NewValidation builds a Validation error.
func NewValidation(field, message string) error {
	return &Validation{Field: field, Message: message}
}

// Backend indicates a storage call failed. The caller must roll back the
// active unit of work before this error reaches the transport edge.
type Backend struct {
	Op  string
	Err error
}

func (e *Backend) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *Backend) Unwrap() error { return e.Err }
func (e *Backend) Status() int   { return http.StatusInternalServerError }

// NewBackend wraps err as a Backend error for operation op.
func NewBackend(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Backend{Op: op, Err: err}
}

// ExternalProviderUnavailable indicates the LLM or embedding provider
// failed. Callers of an operation that returns this are expected to
// degrade gracefully (log and continue) rather than surface it to an HTTP
// caller as a hard failure — the six degraded-operation behaviors are
// spelled out in §7.
type ExternalProviderUnavailable struct {
	Provider string
	Err      error
}

func (e *ExternalProviderUnavailable) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
}
func (e *ExternalProviderUnavailable) Unwrap() error { return e.Err }
func (e *ExternalProviderUnavailable) Status() int   { return http.StatusBadGateway }

// NewProviderUnavailable wraps err as an ExternalProviderUnavailable error.
func NewProviderUnavailable(provider string, err error) error {
	return &ExternalProviderUnavailable{Provider: provider, Err: err}
}

// MalformedLLMOutput indicates the extractor's response could not be parsed
// as the expected JSON shape. Never propagated as a hard failure: the
// extractor treats it as "zero facts" per §7.
type MalformedLLMOutput struct {
	Err error
}

func (e *MalformedLLMOutput) Error() string { return fmt.Sprintf("malformed LLM output: %v", e.Err) }
func (e *MalformedLLMOutput) Unwrap() error { return e.Err }
func (e *MalformedLLMOutput) Status() int   { return http.StatusBadGateway }

// TransactionAbort indicates a unit of work was rolled back due to an
// uncaught error mid-transaction. Never partially committed.
type TransactionAbort struct {
	Err error
}

func (e *TransactionAbort) Error() string { return fmt.Sprintf("transaction aborted: %v", e.Err) }
func (e *TransactionAbort) Unwrap() error { return e.Err }
func (e *TransactionAbort) Status() int   { return http.StatusInternalServerError }

// statusError is satisfied by every kind above; StatusCode finds it in an
// error chain with a single errors.As against this interface and uses its
// Status() as the HTTP status.
type statusError interface {
	error
	Status() int
}

// StatusCode maps any error to an HTTP status code. Unrecognized errors map
// to 500. Wrapped errors are unwrapped via errors.As.
func StatusCode(err error) int {
	var se statusError
	if errors.As(err, &se) {
		return se.Status()
	}
	return http.StatusInternalServerError
}
