package process

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuffer(t *testing.T) {
	var b Buffer

	// New buffer should be empty.
	if got, want := b.Bytes(), []byte(nil); !cmp.Equal(got, want) {
		t.Errorf("b.Bytes() = %v, want %v", got, want)
	}

	text := []byte("Kronk! Pull the lever!")
	got, err := b.Write(text)
	if err != nil {
		t.Errorf("b.Write(%q) error = %v", text, err)
	}
	if want := 22; got != want {
		t.Errorf("b.Write(%q) = %d, want %d", text, got, want)
	}

	out := b.Bytes()
	if diff := cmp.Diff(out, text); diff != "" {
		t.Errorf("b.Bytes() diff (-got +want):\n%s", diff)
	}

	// Bytes hands out a copy.
	out[0] = 'k'
	if got := b.Bytes()[0]; got != 'K' {
		t.Errorf("b.Bytes()[0] = %q after modifying a copy, want 'K'", got)
	}
}

func TestBufferConcurrentWrites(t *testing.T) {
	var b Buffer
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, _ = b.Write([]byte("x"))
			}
		}()
	}
	wg.Wait()

	if got, want := b.Len(), 1000; got != want {
		t.Errorf("b.Len() = %d, want %d", got, want)
	}
}
