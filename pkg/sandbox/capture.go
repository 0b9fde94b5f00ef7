package sandbox

import (
	"bytes"
	"strings"
	"sync"
)

const truncatedMarker = "...[truncated]"

// captureBuffer is an io.Writer that keeps at most max bytes and silently
// discards the rest. exec copies each stream from its own goroutine, so
// writes are serialized.
type captureBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
}

var capturePool = sync.Pool{
	New: func() any { return new(captureBuffer) },
}

func acquireCapture(max int) *captureBuffer {
	c := capturePool.Get().(*captureBuffer)
	c.max = max
	return c
}

func releaseCapture(c *captureBuffer) {
	c.mu.Lock()
	c.buf.Reset()
	c.truncated = false
	c.mu.Unlock()
	capturePool.Put(c)
}

// Write always reports the full length so the child never sees a short
// write or EPIPE because of the cap.
func (c *captureBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(p)
	remaining := c.max - c.buf.Len()
	if remaining <= 0 {
		if n > 0 {
			c.truncated = true
		}
		return n, nil
	}
	if n > remaining {
		c.truncated = true
		p = p[:remaining]
	}
	c.buf.Write(p)
	return n, nil
}

// Text returns the captured output trimmed of surrounding whitespace, with
// a marker appended if anything was discarded. The result is a copy.
func (c *captureBuffer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := strings.TrimSpace(c.buf.String())
	if c.truncated {
		if s != "" {
			s += "\n"
		}
		s += truncatedMarker
	}
	return s
}

// raw returns the captured bytes as written, without the truncation
// marker.
func (c *captureBuffer) raw() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}
