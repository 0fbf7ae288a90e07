package ragged_test

import (
	"context"
	"testing"

	"github.com/example/go-raggedpool/internal/ragged"
)

func hashRow(m ragged.Matrix[uint32], i int) [4]uint32 {
	return [4]uint32(m.Row(i))
}

func TestHashIndependentOfLaunchShape(t *testing.T) {
	base := newEngine(t)
	keys := make([]uint64, 1000)
	for i := range keys {
		keys[i] = uint64(i) * 0x9e3779b97f4a7c15
	}
	const seed = 0xdecafbad

	want, err := base.Hash(context.Background(), keys, seed)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	for _, gs := range []int{1, 7, 128, 1024} {
		e, err := base.WithGroupSize(gs)
		if err != nil {
			t.Fatalf("WithGroupSize(%d): %v", gs, err)
		}

		got, err := e.Hash(context.Background(), keys, seed)
		if err != nil {
			t.Fatalf("Hash(group %d): %v", gs, err)
		}
		for i := range keys {
			if hashRow(got, i) != hashRow(want, i) {
				t.Fatalf("group %d key %d: %08x; want %08x", gs, i, hashRow(got, i), hashRow(want, i))
			}
		}
	}
}

func TestHashIndependentOfBatchPosition(t *testing.T) {
	e := newEngine(t)
	const key = 0x0123456789abcdef

	single, err := e.Hash(context.Background(), []uint64{key}, 42)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	batch := []uint64{7, 8, key, 9, key}
	many, err := e.Hash(context.Background(), batch, 42)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	for _, i := range []int{2, 4} {
		if hashRow(many, i) != hashRow(single, 0) {
			t.Errorf("position %d: %08x; want %08x", i, hashRow(many, i), hashRow(single, 0))
		}
	}
}

func TestHashDistinctKeys(t *testing.T) {
	e := newEngine(t)
	keys := make([]uint64, 10000)
	for i := range keys {
		keys[i] = uint64(i)
	}

	out, err := e.Hash(context.Background(), keys, 0)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	seen := make(map[[4]uint32]int, len(keys))
	for i := range keys {
		h := hashRow(out, i)
		if j, dup := seen[h]; dup {
			t.Fatalf("keys %d and %d collide: %08x", j, i, h)
		}
		seen[h] = i
	}
}

func TestHashSeedMatters(t *testing.T) {
	e := newEngine(t)
	keys := []uint64{1, 2, 3}

	a, err := e.Hash(context.Background(), keys, 1)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := e.Hash(context.Background(), keys, 2)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	for i := range keys {
		if hashRow(a, i) == hashRow(b, i) {
			t.Errorf("key %d hashes identically under seeds 1 and 2", i)
		}
	}
}

func TestHashIntoMatchesHash(t *testing.T) {
	e := newEngine(t)
	keys := []uint64{10, 20, 30}

	want, err := e.Hash(context.Background(), keys, 5)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	got := ragged.NewMatrix[uint32](len(keys), ragged.HashWords)
	if err := e.HashInto(context.Background(), got, keys, 5); err != nil {
		t.Fatalf("HashInto: %v", err)
	}

	for i := range keys {
		if hashRow(got, i) != hashRow(want, i) {
			t.Errorf("key %d: %08x; want %08x", i, hashRow(got, i), hashRow(want, i))
		}
	}
}

func TestHashEmpty(t *testing.T) {
	e := newEngine(t)

	out, err := e.Hash(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if out.Rows != 0 || out.Cols != ragged.HashWords {
		t.Errorf("shape = %dx%d; want 0x4", out.Rows, out.Cols)
	}
}
