package kernels

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnbound is returned by Lookup when the registry validated its documents
// but had no backend to bind them to.
var ErrUnbound = errors.New("kernels: entry point not bound to a backend")

// MissingEntryPointError reports an expected entry point that a document does
// not declare. It is fatal at initialization.
type MissingEntryPointError struct {
	Document string
	Name     string
}

func (e *MissingEntryPointError) Error() string {
	return fmt.Sprintf("kernels: %s does not declare entry point %q", e.Document, e.Name)
}

// Registry maps entry point names to kernels bound on one backend. It is
// built once by NewRegistry and only read afterwards.
type Registry struct {
	entries map[string]EntryPoint
	kernels map[string]Kernel
	bound   bool
}

// NewRegistry discovers the entry points of the pooling and hash documents,
// checks that every expected name is present and binds each entry point with
// c. A nil compiler validates the documents without binding anything, which
// is how an unavailable backend is represented.
func NewRegistry(c Compiler, pool, hash Document) (*Registry, error) {
	r := &Registry{
		entries: make(map[string]EntryPoint),
		kernels: make(map[string]Kernel),
		bound:   c != nil,
	}

	poolEntries, err := ValidatePoolDocument(pool)
	if err != nil {
		return nil, err
	}

	hashEntries, err := ValidateHashDocument(hash)
	if err != nil {
		return nil, err
	}

	for _, ep := range append(poolEntries, hashEntries...) {
		if _, dup := r.entries[ep.Name]; dup {
			return nil, fmt.Errorf("kernels: entry point %q declared by more than one document", ep.Name)
		}
		r.entries[ep.Name] = ep
	}

	if c == nil {
		return r, nil
	}

	for _, name := range append(append([]string(nil), PoolEntryPoints...), HashEntryPoints...) {
		k, err := c.Compile(r.entries[name])
		if err != nil {
			return nil, fmt.Errorf("kernels: bind %q: %w", name, err)
		}
		r.kernels[name] = k
	}

	return r, nil
}

// ValidatePoolDocument parses doc and checks that it declares every name in
// PoolEntryPoints.
func ValidatePoolDocument(doc Document) ([]EntryPoint, error) {
	return discover(doc, PoolEntryPoints)
}

// ValidateHashDocument parses doc and checks that HashData is its only entry
// point.
func ValidateHashDocument(doc Document) ([]EntryPoint, error) {
	entries, err := discover(doc, HashEntryPoints)
	if err != nil {
		return nil, err
	}

	if len(entries) != 1 {
		return nil, fmt.Errorf("kernels: %s must declare exactly one entry point, found %d", doc.Name, len(entries))
	}

	return entries, nil
}

func discover(doc Document, expected []string) ([]EntryPoint, error) {
	entries, err := Parse(doc)
	if err != nil {
		return nil, err
	}

	found := make(map[string]struct{}, len(entries))
	for _, ep := range entries {
		found[ep.Name] = struct{}{}
	}

	for _, name := range expected {
		if _, ok := found[name]; !ok {
			return nil, &MissingEntryPointError{Document: doc.Name, Name: name}
		}
	}

	return entries, nil
}

// Bound reports whether the registry's entry points are bound to a backend.
func (r *Registry) Bound() bool { return r.bound }

// Lookup returns the kernel bound to name.
func (r *Registry) Lookup(name string) (Kernel, error) {
	if _, ok := r.entries[name]; !ok {
		return nil, fmt.Errorf("kernels: unknown entry point %q", name)
	}
	if !r.bound {
		return nil, ErrUnbound
	}

	k, ok := r.kernels[name]
	if !ok {
		return nil, fmt.Errorf("kernels: entry point %q is declared but not bound", name)
	}

	return k, nil
}

// Entry returns the discovered entry point called name.
func (r *Registry) Entry(name string) (EntryPoint, bool) {
	ep, ok := r.entries[name]
	return ep, ok
}

// Names returns every discovered entry point name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)

	return out
}
