package approval

import (
	"errors"
	"fmt"

	"gitlab.com/yelinaung/expense-approvals/internal/authz"
)

// Sentinel errors. Typed errors below unwrap to these so callers can use errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrNotAuthorized = errors.New("not authorized")
	ErrConfiguration = errors.New("invalid approval configuration")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = authz.ErrForbidden
	ErrInvalidInput  = errors.New("invalid input")
)

// ConfigurationError reports a rule that cannot produce a valid workflow.
type ConfigurationError struct {
	RuleID int64
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("approval rule %d: %s: %s", e.RuleID, e.Field, e.Reason)
	}
	return fmt.Sprintf("approval rule %d: %s", e.RuleID, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NotAuthorizedError reports a decision with no matching pending assignment.
type NotAuthorizedError struct {
	ExpenseID  int64
	ApproverID int64
	Reason     string
}

func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf("user %d cannot decide expense %d: %s", e.ApproverID, e.ExpenseID, e.Reason)
}

func (e *NotAuthorizedError) Unwrap() error { return ErrNotAuthorized }

// NotFoundError reports a missing expense, rule, user or company.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports an operation that is invalid for the current state.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFound builds a NotFoundError.
func NotFound(resource string, id int64) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// Invalid wraps a validation message as ErrInvalidInput.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
