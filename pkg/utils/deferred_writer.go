package utils

import (
	"bytes"
	"io"
	"sync"
)

// DeferredWriter holds output in memory until Flush, for text produced while
// a full-screen program owns the terminal. When MaxLines is positive only the
// most recent MaxLines complete lines are kept. Safe for concurrent use.
type DeferredWriter struct {
	MaxLines int

	mu      sync.Mutex
	lines   [][]byte
	partial bytes.Buffer
	dropped int
}

// Write buffers p. It never fails.
func (d *DeferredWriter) Write(p []byte) (n int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rest := p
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			d.partial.Write(rest)
			break
		}
		d.partial.Write(rest[:i+1])
		d.lines = append(d.lines, bytes.Clone(d.partial.Bytes()))
		d.partial.Reset()
		rest = rest[i+1:]
	}

	if d.MaxLines > 0 && len(d.lines) > d.MaxLines {
		over := len(d.lines) - d.MaxLines
		d.dropped += over
		d.lines = append(d.lines[:0], d.lines[over:]...)
	}

	return len(p), nil
}

// Dropped returns how many lines were discarded to honor MaxLines since the
// last Flush.
func (d *DeferredWriter) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Flush writes everything retained to w, including a trailing partial line,
// and clears the buffer.
func (d *DeferredWriter) Flush(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	defer func() {
		d.lines = nil
		d.partial.Reset()
		d.dropped = 0
	}()

	for _, line := range d.lines {
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	if d.partial.Len() > 0 {
		if _, err := d.partial.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}
