package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// sink receives lines at or above min.
type sink struct {
	w   *bufio.Writer
	min slog.Level
}

func newSink(w io.Writer, minLevel slog.Level) sink {
	return sink{w: bufio.NewWriterSize(w, 32*1024), min: minLevel}
}

type entry struct {
	level slog.Level
	line  []byte
	ack   chan error
}

// lineWriter fans lines out to its sinks from one goroutine, so handlers
// only pay for a channel send. Sinks are flushed whenever the queue drains.
type lineWriter struct {
	queue chan entry
	done  chan struct{}
	sinks []sink

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

func newLineWriter(sinks ...sink) *lineWriter {
	w := &lineWriter{
		queue: make(chan entry, 256),
		done:  make(chan struct{}),
		sinks: sinks,
	}
	go w.run()
	return w
}

func (w *lineWriter) run() {
	defer close(w.done)
	for e := range w.queue {
		if e.ack != nil {
			e.ack <- w.flush()
			continue
		}
		for _, s := range w.sinks {
			if e.level < s.min {
				continue
			}
			if _, err := s.w.Write(e.line); err != nil {
				w.fail(err)
			}
		}
		if len(w.queue) == 0 {
			w.fail(w.flush())
		}
	}
	w.fail(w.flush())
}

// Write queues a copy of line; it reports the first sink error seen so far.
func (w *lineWriter) Write(level slog.Level, line []byte) error {
	if len(line) == 0 {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.queue <- entry{level: level, line: append([]byte(nil), line...)}
	return w.failed()
}

// Flush blocks until every queued line reached the sinks.
func (w *lineWriter) Flush() error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return errWriterClosed
	}
	ack := make(chan error, 1)
	w.queue <- entry{ack: ack}
	w.mu.RUnlock()
	return <-ack
}

// Close drains the queue and stops the writer goroutine.
func (w *lineWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
	return w.failed()
}

func (w *lineWriter) flush() error {
	var errs []error
	for _, s := range w.sinks {
		errs = append(errs, s.w.Flush())
	}
	return errors.Join(errs...)
}

func (w *lineWriter) fail(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.errMu.Unlock()
}

func (w *lineWriter) failed() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}
