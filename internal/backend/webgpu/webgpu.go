//go:build webgpu

// Package webgpu runs the WGSL kernel documents on a WebGPU device.
package webgpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/example/go-raggedpool/internal/backend"
	"github.com/example/go-raggedpool/internal/kernels"
	"github.com/example/go-raggedpool/internal/launch"
)

// Compiled reports whether this binary was built with WebGPU support.
const Compiled = true

// readTimeout bounds how long a launch waits for its results to map.
const readTimeout = 10 * time.Second

// Backend owns one WebGPU device and the pipelines compiled on it.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	name     string

	// mu serializes queue submissions and guards the pipeline cache.
	mu        sync.Mutex
	pipelines map[pipelineKey]*wgpu.ComputePipeline
	closed    bool
}

type pipelineKey struct {
	entry     string
	groupSize int
}

// New acquires an adapter and a device. It fails with an error wrapping
// backend.ErrUnavailable when no adapter or device can be obtained.
func New() (*Backend, error) {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, fmt.Errorf("webgpu: create instance: %w", backend.ErrUnavailable)
	}

	var (
		adapter *wgpu.Adapter
		err     error
	)
	for _, opts := range []*wgpu.RequestAdapterOptions{
		{PowerPreference: wgpu.PowerPreferenceHighPerformance},
		{PowerPreference: wgpu.PowerPreferenceLowPower},
		nil,
	} {
		adapter, err = instance.RequestAdapter(opts)
		if err == nil && adapter != nil {
			break
		}
	}
	if adapter == nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: request adapter: %w", errors.Join(backend.ErrUnavailable, err))
	}

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: request device: %w", errors.Join(backend.ErrUnavailable, err))
	}

	info := adapter.GetInfo()

	return &Backend{
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     device.GetQueue(),
		name:      info.Name,
		pipelines: make(map[pipelineKey]*wgpu.ComputePipeline),
	}, nil
}

func (b *Backend) Name() string    { return "webgpu" }
func (b *Backend) Available() bool { return true }
func (b *Backend) Device() string  { return "webgpu:" + b.name }

// Close releases the pipelines, the device and the adapter.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, p := range b.pipelines {
		p.Release()
	}
	b.pipelines = nil
	b.device.Release()
	b.adapter.Release()
	b.instance.Release()

	return nil
}

// Compile checks that ep has a binding layout and that its document compiles
// at the default group size. Other group sizes are compiled on first launch.
func (b *Backend) Compile(ep kernels.EntryPoint) (kernels.Kernel, error) {
	layout, ok := bindings[ep.Name]
	if !ok {
		return nil, fmt.Errorf("webgpu: no binding layout for entry point %q", ep.Name)
	}

	k := &kernel{ep: ep, layout: layout, backend: b}
	if _, err := b.pipeline(ep, launch.DefaultGroupSize); err != nil {
		return nil, err
	}

	return k, nil
}

func (b *Backend) pipeline(ep kernels.EntryPoint, groupSize int) (*wgpu.ComputePipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("webgpu: backend closed: %w", backend.ErrUnavailable)
	}

	key := pipelineKey{entry: ep.Name, groupSize: groupSize}
	if p, ok := b.pipelines[key]; ok {
		return p, nil
	}

	label := fmt.Sprintf("%s_%d", ep.Name, groupSize)
	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: withGroupSize(ep.Source, groupSize)},
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: compile %s: %w", ep.Document, err)
	}
	defer module.Release()

	p, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   label,
		Compute: wgpu.ProgrammableStageDescriptor{Module: module, EntryPoint: ep.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: pipeline %q: %w", ep.Name, err)
	}
	b.pipelines[key] = p

	return p, nil
}

func withGroupSize(src string, groupSize int) string {
	return fmt.Sprintf("const GROUP_SIZE: u32 = %du;\n\n", groupSize) + src
}

type kernel struct {
	ep      kernels.EntryPoint
	layout  []binding
	backend *Backend
}

func (k *kernel) Name() string   { return k.ep.Name }
func (k *kernel) Device() string { return k.backend.Device() }

// Launch uploads the inputs, dispatches shape.Groups workgroups and copies
// the written buffers back into args.
func (k *kernel) Launch(ctx context.Context, shape launch.Shape, args *kernels.Args) error {
	if shape.Groups < 1 || shape.GroupSize < 1 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pipeline, err := k.backend.pipeline(k.ep, shape.GroupSize)
	if err != nil {
		return err
	}

	b := k.backend
	bufs := make([]*wgpu.Buffer, 0, len(k.layout))
	defer func() {
		for _, buf := range bufs {
			buf.Destroy()
		}
	}()

	entries := make([]wgpu.BindGroupEntry, 0, len(k.layout))
	outputs := make(map[int]*wgpu.Buffer)

	for _, bd := range k.layout {
		data := bd.bytes(args)
		usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
		if bd.slot == slotParams {
			usage = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
		}
		if bd.output {
			usage |= wgpu.BufferUsageCopySrc
		}

		buf, err := b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    fmt.Sprintf("%s_b%d", k.ep.Name, bd.index),
			Contents: data,
			Usage:    usage,
		})
		if err != nil {
			return fmt.Errorf("webgpu: %s binding %d: %w", k.ep.Name, bd.index, err)
		}
		bufs = append(bufs, buf)

		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(bd.index), Buffer: buf, Size: buf.GetSize()})
		if bd.output {
			outputs[bd.index] = buf
		}
	}

	layout := pipeline.GetBindGroupLayout(0)
	defer layout.Release()

	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k.ep.Name,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("webgpu: bind group %q: %w", k.ep.Name, err)
	}
	defer group.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("webgpu: command encoder: %w", err)
	}

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, group, nil)
	pass.DispatchWorkgroups(uint32(shape.Groups), 1, 1)
	pass.End()

	staging := make(map[int]*wgpu.Buffer, len(outputs))
	for index, buf := range outputs {
		st, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("%s_staging%d", k.ep.Name, index),
			Size:  buf.GetSize(),
			Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("webgpu: staging buffer: %w", err)
		}
		bufs = append(bufs, st)
		encoder.CopyBufferToBuffer(buf, 0, st, 0, buf.GetSize())
		staging[index] = st
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("webgpu: finish commands: %w", err)
	}

	b.mu.Lock()
	b.queue.Submit(cmd)
	b.mu.Unlock()

	for _, bd := range k.layout {
		if !bd.output {
			continue
		}
		data, err := b.read(ctx, staging[bd.index])
		if err != nil {
			return fmt.Errorf("webgpu: read %s binding %d: %w", k.ep.Name, bd.index, err)
		}
		bd.store(args, data)
	}

	return nil
}

// read maps buf and returns a copy of its contents.
func (b *Backend) read(ctx context.Context, buf *wgpu.Buffer) ([]byte, error) {
	size := buf.GetSize()
	done := make(chan struct{})
	var mapErr error

	err := buf.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("map failed: %v", status)
		}
		close(done)
	})
	if err != nil {
		return nil, err
	}

	timeout := time.After(readTimeout)
	for waiting := true; waiting; {
		b.device.Poll(false, nil)

		select {
		case <-done:
			waiting = false
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, fmt.Errorf("timed out after %s", readTimeout)
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if mapErr != nil {
		return nil, mapErr
	}

	mapped := buf.GetMappedRange(0, uint(size))
	if mapped == nil {
		return nil, errors.New("empty mapped range")
	}
	out := append([]byte(nil), mapped...)
	buf.Unmap()

	return out, nil
}
