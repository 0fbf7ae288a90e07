// Package cpu runs kernel documents on goroutines. A launch of G groups of L
// lanes starts G tasks; each task runs its L lanes in order. At most Workers
// groups run at once.
package cpu

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/cpu"

	"github.com/example/go-raggedpool/internal/kernels"
	"github.com/example/go-raggedpool/internal/launch"
)

// Backend is the goroutine executor. It is always available.
type Backend struct {
	workers int
}

// New returns a CPU backend running at most workers groups concurrently.
// workers <= 0 means GOMAXPROCS.
func New(workers int) *Backend {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Backend{workers: workers}
}

func (b *Backend) Name() string    { return "cpu" }
func (b *Backend) Available() bool { return true }
func (b *Backend) Close() error    { return nil }

// Workers returns the group concurrency limit.
func (b *Backend) Workers() int { return b.workers }

// Device returns "cpu" followed by the SIMD features detected on the host.
func (b *Backend) Device() string {
	feats := Features()
	if len(feats) == 0 {
		return "cpu"
	}

	return "cpu (" + strings.Join(feats, ",") + ")"
}

// Features lists the SIMD extensions reported by the host CPU.
func Features() []string {
	var out []string

	switch runtime.GOARCH {
	case "amd64", "386":
		for _, f := range []struct {
			name string
			has  bool
		}{
			{"sse4.2", cpu.X86.HasSSE42},
			{"avx", cpu.X86.HasAVX},
			{"avx2", cpu.X86.HasAVX2},
			{"fma", cpu.X86.HasFMA},
			{"avx512f", cpu.X86.HasAVX512F},
		} {
			if f.has {
				out = append(out, f.name)
			}
		}
	case "arm64":
		for _, f := range []struct {
			name string
			has  bool
		}{
			{"asimd", cpu.ARM64.HasASIMD},
			{"atomics", cpu.ARM64.HasATOMICS},
			{"sve", cpu.ARM64.HasSVE},
		} {
			if f.has {
				out = append(out, f.name)
			}
		}
	}

	return out
}

// Compile binds ep to its Go lane function.
func (b *Backend) Compile(ep kernels.EntryPoint) (kernels.Kernel, error) {
	lane, ok := lanes[ep.Name]
	if !ok {
		return nil, fmt.Errorf("cpu: no implementation for entry point %q", ep.Name)
	}

	return &kernel{name: ep.Name, lane: lane, backend: b}, nil
}

// state is what every lane of one launch shares.
type state struct {
	*kernels.Args

	// off holds the row offsets of the ragged layout, computed once per launch.
	off []int
}

type laneFunc func(s *state, lane, stride int)

type kernel struct {
	name    string
	lane    laneFunc
	backend *Backend
}

func (k *kernel) Name() string   { return k.name }
func (k *kernel) Device() string { return k.backend.Device() }

// Launch runs shape.Groups groups of shape.GroupSize lanes and waits for all
// of them. Cancelling ctx stops groups that have not started yet.
func (k *kernel) Launch(ctx context.Context, shape launch.Shape, args *kernels.Args) error {
	if shape.Groups < 1 || shape.GroupSize < 1 {
		return nil
	}

	s := &state{Args: args}
	if args.Lengths != nil {
		s.off = kernels.Offsets(args.Lengths)
	}

	stride := shape.Lanes()
	if shape.Groups == 1 || k.backend.workers <= 1 {
		for g := range shape.Groups {
			if err := ctx.Err(); err != nil {
				return err
			}
			k.runGroup(s, g, shape.GroupSize, stride)
		}

		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(k.backend.workers)

	for g := range shape.Groups {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			k.runGroup(s, g, shape.GroupSize, stride)

			return nil
		})
	}

	return eg.Wait()
}

func (k *kernel) runGroup(s *state, group, size, stride int) {
	base := group * size
	for l := range size {
		k.lane(s, base+l, stride)
	}
}
