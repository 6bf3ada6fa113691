package logger

import (
	"fmt"
	"strings"
	"sync"
)

// Buffer is a Logger implementation intended for testing;
// messages are stored internally, with any fields appended as key=value.
type Buffer struct {
	mu       *sync.Mutex
	fields   Fields
	messages *[]string

	Messages []string
}

// NewBuffer creates a new Buffer with Messages slice initialized.
// This makes it simpler to assert empty []string when no log messages
// have been sent; otherwise Messages would be nil.
func NewBuffer() *Buffer {
	b := &Buffer{mu: &sync.Mutex{}, Messages: make([]string, 0)}
	b.messages = &b.Messages
	return b
}

func (b *Buffer) add(prefix, format string, v ...any) {
	var line strings.Builder
	line.WriteString(prefix)
	line.WriteString(fmt.Sprintf(format, v...))
	for _, f := range b.fields {
		fmt.Fprintf(&line, " %s=%s", f.Key(), f.String())
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	*b.messages = append(*b.messages, line.String())
}

func (b *Buffer) Debug(format string, v ...any)  { b.add("[debug] ", format, v...) }
func (b *Buffer) Error(format string, v ...any)  { b.add("[error] ", format, v...) }
func (b *Buffer) Fatal(format string, v ...any)  { b.add("[fatal] ", format, v...) }
func (b *Buffer) Notice(format string, v ...any) { b.add("[notice] ", format, v...) }
func (b *Buffer) Warn(format string, v ...any)   { b.add("[warn] ", format, v...) }
func (b *Buffer) Info(format string, v ...any)   { b.add("[info] ", format, v...) }

// WithFields returns a Buffer that shares messages with b.
func (b *Buffer) WithFields(fields ...Field) Logger {
	return &Buffer{
		mu:       b.mu,
		fields:   append(append(Fields{}, b.fields...), fields...),
		messages: b.messages,
	}
}

func (b *Buffer) SetLevel(level Level) {}

func (b *Buffer) Level() Level {
	return DEBUG
}

// Lines returns a copy of the messages logged so far.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, (*b.messages)...)
}
