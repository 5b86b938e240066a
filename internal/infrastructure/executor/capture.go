package executor

import (
	"bytes"
	"sync"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/ports"
)

// cappedBuffer keeps at most max bytes, discarding the oldest data first so
// the tail of a stream survives. Safe for the single writer goroutine plus a
// reader after process exit.
type cappedBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newCappedBuffer(max int) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = append(c.buf, p...)
	if len(c.buf) > c.max {
		c.buf = c.buf[len(c.buf)-c.max:]
	}
	return len(p), nil
}

func (c *cappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.buf)
}

// sampledWriter tees stderr into the capture buffer and logs every Nth line
// for progress visibility. Sampling never influences control flow.
type sampledWriter struct {
	dst    *cappedBuffer
	logger ports.Logger
	lines  int
}

func newSampledWriter(dst *cappedBuffer, logger ports.Logger) *sampledWriter {
	return &sampledWriter{dst: dst, logger: logger}
}

func (w *sampledWriter) Write(p []byte) (int, error) {
	if _, err := w.dst.Write(p); err != nil {
		return 0, err
	}
	// The media tool emits progress on carriage returns, diagnostics on
	// newlines; both delimit a sampled line.
	rest := p
	for {
		idx := bytes.IndexAny(rest, "\r\n")
		if idx == -1 {
			break
		}
		line := rest[:idx]
		rest = rest[idx+1:]
		w.lines++
		if w.logger != nil && w.lines%domain.StderrSampleEvery == 0 {
			w.logger.Debug("tool progress", map[string]interface{}{
				"line": string(bytes.TrimSpace(line)),
			})
		}
	}
	return len(p), nil
}
