package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrCountMismatch = errors.New("count mismatch")
	ErrOwnership     = errors.New("ownership violation")
	ErrInvalid       = errors.New("invalid input")
)

// CountMismatchError reports a batch whose affected count differs from the
// number of records submitted.
type CountMismatchError struct {
	Operation string
	Expected  int
	Actual    int64
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d affected, storage reported %d", e.Operation, e.Expected, e.Actual)
}

func (e *CountMismatchError) Is(target error) bool { return target == ErrCountMismatch }

type NotFoundError struct {
	Entity  string
	IDs     []string
	Missing int
}

func (e *NotFoundError) Error() string {
	if len(e.IDs) == 0 {
		return fmt.Sprintf("%d %s(s) not found", e.Missing, e.Entity)
	}
	return fmt.Sprintf("%d %s(s) not found: %s", e.Missing, e.Entity, strings.Join(e.IDs, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type OwnershipError struct {
	Entity string
	IDs    []string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("%s(s) not owned by caller: %s", e.Entity, strings.Join(e.IDs, ", "))
}

func (e *OwnershipError) Is(target error) bool { return target == ErrOwnership }

type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string { return e.Reason }

func (e *InvalidError) Is(target error) bool { return target == ErrInvalid }

func invalidf(format string, args ...any) error {
	return &InvalidError{Reason: fmt.Sprintf(format, args...)}
}
