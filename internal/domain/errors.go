package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface keeps the handler layer free of type switches
// over concrete error types.
type HTTPError interface {
	error
	StatusCode() int
}

type (
	// NotFoundError indicates a resource was not found or has expired.
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates input that fails length or shape checks.
	ValidationError struct {
		Message string
		Errors  []string
	}

	// BlockedError indicates input rejected by the safety pipeline. Reason
	// is one of the block-reason wire strings (prompt_injection,
	// harmful_content, sensitive_topic, content_policy, manipulation).
	BlockedError struct {
		Reason string
		Errors []string
	}

	// ConflictError indicates an operation that is illegal in the resource's
	// current state, e.g. starting an engine that is already running.
	ConflictError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string   { return e.Message }
func (e *ValidationError) Error() string { return e.Message }
func (e *BlockedError) Error() string    { return "input blocked: " + e.Reason }
func (e *ConflictError) Error() string   { return e.Message }

func (e *NotFoundError) StatusCode() int   { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }
func (e *BlockedError) StatusCode() int    { return http.StatusUnprocessableEntity }
func (e *ConflictError) StatusCode() int   { return http.StatusConflict }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound          = errors.New("not found")
	ErrExpired           = errors.New("expired")
	ErrCorrupted         = errors.New("corrupted record")
	ErrValidation        = errors.New("validation failed")
	ErrBlocked           = errors.New("blocked by safety pipeline")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyRunning    = errors.New("debate already running")
	ErrNoCurrentTurn     = errors.New("no current turn")
	ErrBudgetDenied      = errors.New("budget denied")
	ErrBudgetExhausted   = errors.New("budget exhausted")
	ErrIllegalTransition = errors.New("illegal engine transition")
	ErrSpeakerMismatch   = errors.New("turn speaker does not match schedule")
)

// Is allows errors.Is(err, ErrNotFound) to match NotFoundError values.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Is allows errors.Is(err, ErrBlocked) to match BlockedError values.
func (e *BlockedError) Is(target error) bool { return target == ErrBlocked }

// Is allows errors.Is(err, ErrConflict) to match ConflictError values.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Is allows errors.Is(err, ErrValidation) to match ValidationError values.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
