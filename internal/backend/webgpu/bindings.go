//go:build webgpu

package webgpu

import (
	"encoding/binary"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/example/go-raggedpool/internal/kernels"
)

// slot names the Args field a binding is filled from.
type slot int

const (
	slotParams slot = iota
	slotHashParams
	slotOut
	slotWhich
	slotX
	slotLengths
	slotKeys
	slotHashes
)

// binding is one @binding of an entry point's bind group.
type binding struct {
	index  int
	slot   slot
	output bool
}

// bindings lists, per entry point, the bindings it statically uses. The
// layout is derived by the pipeline, so unused bindings must not be bound.
var bindings = map[string][]binding{
	kernels.SumPool: {
		{0, slotParams, false},
		{1, slotOut, true},
		{3, slotX, false},
		{4, slotLengths, false},
	},
	kernels.MaxPool: {
		{0, slotParams, false},
		{1, slotOut, true},
		{2, slotWhich, true},
		{3, slotX, false},
		{4, slotLengths, false},
	},
	kernels.Maxout: {
		{0, slotParams, false},
		{1, slotOut, true},
		{2, slotWhich, true},
		{3, slotX, false},
	},
	kernels.BackpropSumPool: {
		{0, slotParams, false},
		{1, slotOut, true},
		{3, slotX, false},
		{4, slotLengths, false},
	},
	kernels.BackpropMaxPool: {
		{0, slotParams, false},
		{3, slotX, false},
		{5, slotOut, true},
		{6, slotWhich, false},
	},
	kernels.HashData: {
		{0, slotHashParams, false},
		{1, slotHashes, true},
		{2, slotKeys, false},
	},
}

// minBinding is the smallest buffer we create. Zero-sized storage bindings
// are rejected by the API, so empty inputs get one padding word.
const minBinding = 4

func (bd binding) bytes(a *kernels.Args) []byte {
	var data []byte

	switch bd.slot {
	case slotParams:
		data = words(uint32(a.B), uint32(a.T), uint32(a.O), uint32(a.P))
	case slotHashParams:
		data = words(uint32(len(a.Keys)), uint32(a.Seed), uint32(a.Seed>>32), 0)
	case slotOut:
		data = wgpu.ToBytes(a.Out)
	case slotWhich:
		data = wgpu.ToBytes(a.Which)
	case slotX:
		data = wgpu.ToBytes(a.X)
	case slotLengths:
		data = wgpu.ToBytes(a.Lengths)
	case slotKeys:
		data = wgpu.ToBytes(a.Keys)
	case slotHashes:
		data = wgpu.ToBytes(a.Hashes)
	}

	if len(data) < minBinding {
		data = append(append([]byte(nil), data...), make([]byte, minBinding-len(data))...)
	}

	return data
}

// store copies a mapped output buffer back into the Args field it came from.
func (bd binding) store(a *kernels.Args, data []byte) {
	switch bd.slot {
	case slotOut:
		copy(a.Out, wgpu.FromBytes[float32](data))
	case slotWhich:
		copy(a.Which, wgpu.FromBytes[int32](data))
	case slotHashes:
		copy(a.Hashes, wgpu.FromBytes[uint32](data))
	}
}

func words(v ...uint32) []byte {
	out := make([]byte, 4*len(v))
	for i, w := range v {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}

	return out
}
