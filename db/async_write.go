package db

import (
	"sync"
	"time"
)

// DefaultQueueSize bounds how many records an AsyncWriter holds before Write
// starts refusing them.
const DefaultQueueSize = 100

// AsyncWriterConfig configures an AsyncWriter.
type AsyncWriterConfig struct {
	QueueSize int
	// OnError receives handler failures. Nil discards them.
	OnError func(error)
}

// AsyncWriter applies values of type T on one background goroutine so that
// recording a trial never stalls the search loop. Close drains the queue.
type AsyncWriter[T any] struct {
	queue   chan T
	apply   func(T) error
	onError func(error)

	startOnce sync.Once
	// mu orders Write against Close: once closed is set under the write
	// lock, nothing more reaches the queue, so the final drain sees every
	// accepted value.
	mu       sync.RWMutex
	closed   bool
	quit     chan struct{}
	finished chan struct{}
}

// NewAsyncWriter returns a stopped writer. Values written before Start wait
// in the queue.
func NewAsyncWriter[T any](apply func(T) error, config AsyncWriterConfig) *AsyncWriter[T] {
	size := config.QueueSize
	if size < 1 {
		size = DefaultQueueSize
	}
	return &AsyncWriter[T]{
		queue:    make(chan T, size),
		apply:    apply,
		onError:  config.OnError,
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start launches the background goroutine once.
func (w *AsyncWriter[T]) Start() {
	w.startOnce.Do(func() { go w.loop() })
}

func (w *AsyncWriter[T]) loop() {
	defer close(w.finished)
	for {
		select {
		case v := <-w.queue:
			w.handle(v)
		case <-w.quit:
			for {
				select {
				case v := <-w.queue:
					w.handle(v)
				default:
					return
				}
			}
		}
	}
}

func (w *AsyncWriter[T]) handle(v T) {
	if err := w.apply(v); err != nil && w.onError != nil {
		w.onError(err)
	}
}

// Write queues v. It returns false without blocking when the queue is full
// or the writer is closing; the caller then writes synchronously. Every value
// Write accepts is applied before Close reports a finished drain.
//
// Example:
//
//	if !writer.Write(trial) {
//	    _, err = repo.insertTrial(ctx, trial)
//	}
func (w *AsyncWriter[T]) Write(v T) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- v:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued values.
func (w *AsyncWriter[T]) Pending() int {
	return len(w.queue)
}

// Close stops accepting values and waits up to timeout for the queue to
// drain. A zero timeout waits indefinitely. It reports whether the drain
// finished. Close starts the writer if it never ran so queued values are
// still applied.
func (w *AsyncWriter[T]) Close(timeout time.Duration) bool {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.quit)
	}
	w.mu.Unlock()
	w.Start()

	if timeout <= 0 {
		<-w.finished
		return true
	}
	select {
	case <-w.finished:
		return true
	case <-time.After(timeout):
		return false
	}
}
