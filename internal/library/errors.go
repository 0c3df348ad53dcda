package library

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrHasActiveDependents = errors.New("has active dependents")
	ErrAlreadyReturned     = errors.New("already returned")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrInvalidInput        = errors.New("invalid input")
)

// NotFoundError reports an id absent from its collection.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DependentsError reports a delete refused because live records still reference the entity.
type DependentsError struct {
	Kind  Kind
	ID    string
	Count int
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("%s %q has %d active dependent(s)", e.Kind, e.ID, e.Count)
}

func (e *DependentsError) Is(target error) bool { return target == ErrHasActiveDependents }

// TransitionError reports a lifecycle operation that is not allowed in the current state.
type TransitionError struct {
	Reason string
}

func (e *TransitionError) Error() string {
	return "invalid transition: " + e.Reason
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// DuplicateKeyError reports a uniqueness violation.
type DuplicateKeyError struct {
	Kind  Kind
	Field string
	Value string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Kind, e.Field, e.Value)
}

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

func notFound(kind Kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func invalidTransition(format string, args ...any) error {
	return &TransitionError{Reason: fmt.Sprintf(format, args...)}
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func alreadyReturned(kind Kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrAlreadyReturned)
}

// DependentCount extracts the dependent count from a refused delete.
func DependentCount(err error) (int, bool) {
	var de *DependentsError
	if errors.As(err, &de) {
		return de.Count, true
	}
	return 0, false
}
