package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"jpegsize/logging"

	"go.uber.org/zap"
)

// Handler cancels a context on the first signal and calls a force callback
// on the forceAfter-th.
//
// Usage:
//
//	ctx, h := shutdown.NewHandler(context.Background(), logger, 2, func(sig os.Signal) { os.Exit(130) })
//	h.Start(os.Interrupt, syscall.SIGTERM)
//	defer h.Stop()
type Handler struct {
	counter *SignalCounter
	cancel  context.CancelFunc
	logger  *logging.Logger

	sigCh chan os.Signal
	done  chan struct{}
	once  sync.Once
}

// NewHandler returns a context derived from parent that is cancelled by the
// first delivered signal.
func NewHandler(parent context.Context, logger *logging.Logger, forceAfter int, onForce func(os.Signal)) (context.Context, *Handler) {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	return ctx, &Handler{
		counter: NewSignalCounter(forceAfter, onForce),
		cancel:  cancel,
		logger:  logger,
		sigCh:   make(chan os.Signal, 2),
		done:    make(chan struct{}),
	}
}

// Start subscribes to sigs and handles them until Stop.
func (h *Handler) Start(sigs ...os.Signal) {
	signal.Notify(h.sigCh, sigs...)
	go func() {
		for {
			select {
			case sig := <-h.sigCh:
				h.Deliver(sig)
			case <-h.done:
				return
			}
		}
	}()
}

// Deliver handles sig as if it had been received from the OS.
func (h *Handler) Deliver(sig os.Signal) {
	count := h.counter.Record(sig)
	if count == 1 {
		h.logger.Warn("shutdown requested, finishing current trial; repeat to force exit",
			zap.String("signal", sig.String()))
		h.cancel()
		return
	}
	h.logger.Warn("repeated shutdown signal", zap.String("signal", sig.String()), zap.Int("count", count))
}

// Signal returns the last delivered signal, or nil.
func (h *Handler) Signal() os.Signal {
	return h.counter.Last()
}

// Stop unsubscribes from signals and releases the context.
func (h *Handler) Stop() {
	h.once.Do(func() {
		signal.Stop(h.sigCh)
		close(h.done)
		h.cancel()
	})
}
