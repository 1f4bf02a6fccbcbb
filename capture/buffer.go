// Package capture provides the bounded output sinks used for supervised servers and probe
// commands.
package capture

import (
	"strconv"
	"sync"
	"unicode/utf8"
)

// DefaultLimitBytes is the capture limit used when a caller passes a non-positive limit.
const DefaultLimitBytes = 1 << 20

const truncatedMarker = "\n...[output truncated]"

// Buffer is an io.Writer that keeps at most a fixed number of bytes and silently discards
// the rest. Writes never fail, so a chatty child process cannot block on its own output.
// It is safe for concurrent use.
type Buffer struct {
	max       int
	data      []byte
	truncated bool
	lock      sync.Mutex
}

func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultLimitBytes
	}
	return &Buffer{max: max}
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	remaining := b.max - len(b.data)
	switch {
	case remaining >= len(p):
		b.data = append(b.data, p...)
	case remaining > 0:
		b.data = append(b.data, p[:remaining]...)
		b.truncated = true
	case len(p) > 0:
		b.truncated = true
	}
	return len(p), nil
}

// Bytes returns a copy of everything captured so far.
func (b *Buffer) Bytes() []byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]byte(nil), b.data...)
}

func (b *Buffer) Truncated() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.truncated
}

// String returns the captured text, ending with a marker if anything was discarded.
func (b *Buffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.truncated {
		return string(b.data) + truncatedMarker
	}
	return string(b.data)
}

// Truncate shortens s to at most limit bytes, appending a marker that says how much was
// dropped. The cut never splits a UTF-8 sequence. A non-positive limit leaves s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n...[" + strconv.Itoa(len(s)-cut) + " more bytes truncated]"
}
