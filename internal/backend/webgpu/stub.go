//go:build !webgpu

// Package webgpu runs the WGSL kernel documents on a WebGPU device. This
// build has no WebGPU support; rebuild with -tags webgpu to enable it.
package webgpu

import (
	"fmt"

	"github.com/example/go-raggedpool/internal/backend"
)

// Compiled reports whether this binary was built with WebGPU support.
const Compiled = false

// New always fails in builds without the webgpu tag.
func New() (backend.Backend, error) {
	return nil, fmt.Errorf("webgpu: not compiled in (build with -tags webgpu): %w", backend.ErrUnavailable)
}
