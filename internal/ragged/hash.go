package ragged

import (
	"context"

	"github.com/example/go-raggedpool/internal/kernels"
	"github.com/example/go-raggedpool/internal/launch"
)

// HashWords is the number of uint32 words produced per key.
const HashWords = 4

// Hash returns the (len(keys), 4) MurmurHash3 x64_128 digests of keys under
// seed. Each key is hashed as its 8 little-endian bytes with both halves of
// the state seeded with seed; the words of a row are lo(h1), hi(h1), lo(h2),
// hi(h2). Results do not depend on batch position or launch shape.
func (e *Engine) Hash(ctx context.Context, keys []uint64, seed uint64) (Matrix[uint32], error) {
	if !e.Available() {
		return Matrix[uint32]{}, ErrBackendUnavailable
	}

	out := NewMatrix[uint32](len(keys), HashWords)
	if err := e.hash(ctx, out, keys, seed); err != nil {
		return Matrix[uint32]{}, err
	}

	return out, nil
}

// HashInto writes the digests of keys into out, which must be (len(keys), 4).
func (e *Engine) HashInto(ctx context.Context, out Matrix[uint32], keys []uint64, seed uint64) error {
	if !e.Available() {
		return ErrUnsupported
	}
	if err := checkShape("hash", "output", out, len(keys), HashWords); err != nil {
		return err
	}

	return e.hash(ctx, out, keys, seed)
}

func (e *Engine) hash(ctx context.Context, out Matrix[uint32], keys []uint64, seed uint64) error {
	return e.run(ctx, launch.OpHash, kernels.HashData, len(keys), &kernels.Args{
		Keys:   keys,
		Hashes: out.Data,
		Seed:   seed,
	})
}
