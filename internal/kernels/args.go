package kernels

import (
	"context"

	"github.com/example/go-raggedpool/internal/launch"
)

// Args is the argument block of a kernel launch. Each entry point reads the
// fields its parameter list names and ignores the rest:
//
//	sum_pool           Out(B,O) += X(T,O) per item; Lengths, B, T, O
//	max_pool           Out(B,O), Which(B,O) from X(T,O); Lengths, B, T, O
//	maxout             Out(B,O), Which(B,O) from X(B,O*P); B, O, P
//	backprop_sum_pool  Out(T,O) from X(B,O); Lengths, B, T, O
//	backprop_max_pool  Out(T,O) += X(B,O) at Which(B,O); Lengths, B, T, O
//	hash_data          Hashes(N,4) from Keys(N); Seed
//
// Out, Which and Hashes are written in place.
type Args struct {
	Out     []float32
	Which   []int32
	X       []float32
	Lengths []int32
	Keys    []uint64
	Hashes  []uint32
	Seed    uint64

	B, T, O, P int
}

// Kernel is an entry point bound to a backend.
type Kernel interface {
	Name() string
	// Device names where the kernel executes, e.g. "cpu" or "webgpu:<adapter>".
	Device() string
	// Launch runs the kernel over shape and returns once its outputs are
	// visible in args.
	Launch(ctx context.Context, shape launch.Shape, args *Args) error
}

// Compiler binds entry points to kernels on a backend.
type Compiler interface {
	Compile(ep EntryPoint) (Kernel, error)
}
