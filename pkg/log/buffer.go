package log

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// BufferedWriter collects writes in memory until Flush
type BufferedWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
	out io.Writer
}

// NewBufferedWriter creates a writer that holds output for out
func NewBufferedWriter(out io.Writer) *BufferedWriter {
	return &BufferedWriter{out: out}
}

// Write implements io.Writer
func (w *BufferedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

// Flush writes every held byte to the underlying writer
func (w *BufferedWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return nil
	}
	_, err := w.out.Write(w.buf.Bytes())
	w.buf.Reset()
	return err
}

// Transport carries log lines from module processes to the supervisor
type Transport interface {
	// Emit queues one encoded log line
	Emit(ctx context.Context, line []byte) error

	// Drain removes and returns every queued line in emission order
	Drain(ctx context.Context) ([][]byte, error)
}

// TransportWriter is an io.Writer that emits every write as one line.
// zerolog issues exactly one Write per event, so each JSON event becomes
// one transport entry.
type TransportWriter struct {
	Transport Transport
}

// Write implements io.Writer
func (w TransportWriter) Write(p []byte) (int, error) {
	line := bytes.TrimRight(p, "\n")
	if len(line) == 0 {
		return len(p), nil
	}
	// zerolog reuses its buffer after Write returns
	cp := make([]byte, len(line))
	copy(cp, line)
	if err := w.Transport.Emit(context.Background(), cp); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Relay drains t and writes each line, newline terminated, to out.
// It returns the number of relayed lines.
func Relay(ctx context.Context, t Transport, out io.Writer) (int, error) {
	if t == nil {
		return 0, nil
	}
	lines, err := t.Drain(ctx)
	if err != nil {
		return 0, err
	}
	for _, line := range lines {
		if _, err := out.Write(append(line, '\n')); err != nil {
			return 0, err
		}
	}
	return len(lines), nil
}
