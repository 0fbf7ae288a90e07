// Package backend defines the compute backends kernels are bound to and the
// availability gate in front of them.
package backend

import (
	"errors"
	"fmt"

	"github.com/example/go-raggedpool/internal/kernels"
)

// ErrUnavailable is the single canonical error for a missing backend.
var ErrUnavailable = errors.New("compute backend unavailable")

// Backend executes kernel documents.
type Backend interface {
	kernels.Compiler

	// Name returns the short backend name, e.g. "cpu".
	Name() string
	// Device describes the device kernels run on.
	Device() string
	// Available reports whether kernels can be compiled and launched.
	Available() bool
	// Close releases backend resources. Safe to call more than once.
	Close() error
}

// Unavailable returns a backend that cannot run anything. reason explains
// why and is reported by Reason; it may be nil.
func Unavailable(name string, reason error) Backend {
	return unavailable{name: name, reason: reason}
}

type unavailable struct {
	name   string
	reason error
}

func (u unavailable) Name() string    { return u.name }
func (u unavailable) Device() string  { return "none" }
func (u unavailable) Available() bool { return false }
func (u unavailable) Close() error    { return nil }

func (u unavailable) Compile(ep kernels.EntryPoint) (kernels.Kernel, error) {
	return nil, fmt.Errorf("compile %q: %w", ep.Name, ErrUnavailable)
}

func (u unavailable) Reason() error { return u.reason }

// Reason returns why b is unavailable, or nil when it is available or gave
// no reason.
func Reason(b Backend) error {
	if b.Available() {
		return nil
	}

	if r, ok := b.(interface{ Reason() error }); ok {
		return r.Reason()
	}

	return nil
}
