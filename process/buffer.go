package process

import "sync"

// Buffer collects captured output. Writes may come from one goroutine while
// another reads.
type Buffer struct {
	mu  sync.Mutex
	buf []byte
}

func (l *Buffer) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, b...)
	return len(b), nil
}

// Bytes returns a copy of everything written so far, or nil if nothing was.
func (l *Buffer) Bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buf) == 0 {
		return nil
	}
	b := make([]byte, len(l.buf))
	copy(b, l.buf)
	return b
}

func (l *Buffer) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buf)
}
