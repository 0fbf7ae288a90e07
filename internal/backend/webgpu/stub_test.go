//go:build !webgpu

package webgpu

import (
	"errors"
	"testing"

	"github.com/example/go-raggedpool/internal/backend"
)

func TestNewWithoutTagIsUnavailable(t *testing.T) {
	if Compiled {
		t.Fatal("Compiled = true in a build without the webgpu tag")
	}

	b, err := New()
	if !errors.Is(err, backend.ErrUnavailable) {
		t.Fatalf("New err = %v; want ErrUnavailable", err)
	}
	if b != nil {
		t.Errorf("New backend = %v; want nil", b)
	}
}
