package cpu

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/twmb/murmur3"

	"github.com/example/go-raggedpool/internal/kernels"
)

// lanes holds one Go function per entry point of the kernel documents. Each
// mirrors its WGSL counterpart: a grid-stride loop starting at lane.
var lanes = map[string]laneFunc{
	kernels.SumPool:         sumPool,
	kernels.MaxPool:         maxPool,
	kernels.Maxout:          maxout,
	kernels.BackpropSumPool: backpropSumPool,
	kernels.BackpropMaxPool: backpropMaxPool,
	kernels.HashData:        hashData,
}

func sumPool(s *state, lane, stride int) {
	o := s.O
	for b := lane; b < s.B; b += stride {
		out := s.Out[b*o : (b+1)*o]
		for t := s.off[b]; t < s.off[b+1]; t++ {
			row := s.X[t*o : (t+1)*o]
			for j, v := range row {
				out[j] += v
			}
		}
	}
}

func maxPool(s *state, lane, stride int) {
	o := s.O
	for b := lane; b < s.B; b += stride {
		out := s.Out[b*o : (b+1)*o]
		which := s.Which[b*o : (b+1)*o]
		start, end := s.off[b], s.off[b+1]

		if start == end {
			for j := range out {
				out[j] = 0
				which[j] = -1
			}
			continue
		}

		copy(out, s.X[start*o:(start+1)*o])
		for j := range which {
			which[j] = int32(start)
		}

		for t := start + 1; t < end; t++ {
			row := s.X[t*o : (t+1)*o]
			for j, v := range row {
				if v > out[j] {
					out[j] = v
					which[j] = int32(t)
				}
			}
		}
	}
}

func maxout(s *state, lane, stride int) {
	o, p := s.O, s.P
	for b := lane; b < s.B; b += stride {
		index := b * o * p
		for i := range o {
			best := s.X[index]
			var which int32
			for q := 1; q < p; q++ {
				if v := s.X[index+q]; v > best {
					best = v
					which = int32(q)
				}
			}
			s.Out[b*o+i] = best
			s.Which[b*o+i] = which
			index += p
		}
	}
}

func backpropSumPool(s *state, lane, stride int) {
	o := s.O
	for t := lane; t < s.T; t += stride {
		b := kernels.ItemOfRow(s.off, t)
		if b >= s.B {
			continue
		}
		copy(s.Out[t*o:(t+1)*o], s.X[b*o:(b+1)*o])
	}
}

// backpropMaxPool runs one lane per (item, feature) pair. Two pairs never
// share a target cell when the index map is well formed, but the add is
// atomic regardless.
func backpropMaxPool(s *state, lane, stride int) {
	o := s.O
	n := s.B * o
	for k := lane; k < n; k += stride {
		row := s.Which[k]
		if row < 0 {
			continue
		}
		addFloat32(&s.Out[int(row)*o+k%o], s.X[k])
	}
}

func hashData(s *state, lane, stride int) {
	var key [8]byte
	for i := lane; i < len(s.Keys); i += stride {
		binary.LittleEndian.PutUint64(key[:], s.Keys[i])
		h1, h2 := murmur3.SeedSum128(s.Seed, s.Seed, key[:])
		out := s.Hashes[i*4 : i*4+4]
		out[0] = uint32(h1)
		out[1] = uint32(h1 >> 32)
		out[2] = uint32(h2)
		out[3] = uint32(h2 >> 32)
	}
}

// addFloat32 adds v to *p with a compare-and-swap loop on the bit pattern.
func addFloat32(p *float32, v float32) {
	u := (*uint32)(unsafe.Pointer(p))
	for {
		old := atomic.LoadUint32(u)
		next := math.Float32bits(math.Float32frombits(old) + v)
		if atomic.CompareAndSwapUint32(u, old, next) {
			return
		}
	}
}
