package ragged

import (
	"errors"
	"fmt"

	"github.com/example/go-raggedpool/internal/backend"
)

var (
	// ErrBackendUnavailable is returned by the allocating operations when the
	// engine has no compute backend. Nothing is allocated.
	ErrBackendUnavailable = backend.ErrUnavailable

	// ErrUnsupported is returned by the Into operations when the engine has
	// no compute backend to fill the caller's buffers with.
	ErrUnsupported = errors.New("ragged: operation unsupported without a compute backend")
)

// ContractViolationError reports arguments that break an operation's shape
// or layout contract. No kernel is launched when it is returned.
type ContractViolationError struct {
	Op     string
	Reason string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("ragged: %s: contract violation: %s", e.Op, e.Reason)
}

func violation(op, format string, args ...any) error {
	return &ContractViolationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
