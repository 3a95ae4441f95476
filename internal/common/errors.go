package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Business logic errors
var (
	// General errors
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")

	// Room errors
	ErrRoomNotFound         = fmt.Errorf("room not found: %w", ErrNotFound)
	ErrInvalidMemberSet     = fmt.Errorf("member set invalid: %w", ErrInvalidInput)
	ErrUnauthorizedMutation = fmt.Errorf("unauthorized mutation: %w", ErrForbidden)
	ErrNotRoomMember        = fmt.Errorf("not a member of this room: %w", ErrForbidden)

	// Message errors
	ErrMessageNotFound = fmt.Errorf("message not found: %w", ErrNotFound)
	ErrNotSender       = fmt.Errorf("only the sender may remove a message: %w", ErrForbidden)

	// Broadcast errors
	ErrJobNotFound   = fmt.Errorf("broadcast job not found: %w", ErrNotFound)
	ErrJobNotPending = fmt.Errorf("broadcast job is no longer pending: %w", ErrConflict)

	// Legal errors
	ErrInquiryNotFound = fmt.Errorf("legal inquiry not found: %w", ErrNotFound)
	ErrStaleStatus     = fmt.Errorf("status changed by another actor: %w", ErrConflict)

	// Inspector errors
	ErrSessionNotFound = fmt.Errorf("inspector session not found: %w", ErrNotFound)

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError is a field-level input error raised before any write
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidationErrors groups several field errors from one submission
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (es ValidationErrors) Unwrap() error { return ErrInvalidInput }

// Fields returns field → message (for form display)
func (es ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(es))
	for _, e := range es {
		out[e.Field] = e.Message
	}
	return out
}

// PartialDeliveryError reports broadcast targets that could not be delivered.
// The batch itself succeeded; Delivered carries the aggregate count.
type PartialDeliveryError struct {
	Delivered int
	Failed    map[string]error // target user id → cause
}

func (e *PartialDeliveryError) Error() string {
	ids := e.FailedIDs()
	return fmt.Sprintf("broadcast partially delivered: %d delivered, %d failed (%s)",
		e.Delivered, len(ids), strings.Join(ids, ","))
}

// FailedIDs returns the failed target ids in stable order
func (e *PartialDeliveryError) FailedIDs() []string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
