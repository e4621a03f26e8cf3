package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"time"
)

// fanoutWriter buffers writes and fans each line out to every sink.
// Writes are synchronous under a mutex; an internal ticker flushes buffered
// content so lines reach disk even on quiet services.
type fanoutWriter struct {
	mu       sync.Mutex
	sinks    []*bufio.Writer
	writeErr error
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newFanoutWriter(writers []io.Writer, bufSize int) *fanoutWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w == nil {
			continue
		}
		sinks = append(sinks, bufio.NewWriterSize(w, bufSize))
	}
	fw := &fanoutWriter{
		sinks: sinks,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go fw.flushLoop()
	return fw
}

func (w *fanoutWriter) flushLoop() {
	defer close(w.done)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			_ = w.Flush()
		}
	}
}

// Write fans the payload out to all sinks.
func (w *fanoutWriter) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return w.writeErr
	}
	for _, sink := range w.sinks {
		if _, err := sink.Write(p); err != nil {
			w.writeErr = err
			return err
		}
	}
	return nil
}

// Flush pushes buffered content to the underlying sinks.
func (w *fanoutWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops the flush loop and reports the first encountered write error.
func (w *fanoutWriter) Close() error {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	<-w.done
	if err := w.Flush(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeErr
}
