// Package shutdown turns interrupt signals into cancellation of a running
// experiment: the first signal stops the run after the current trial, a
// repeated signal forces exit.
package shutdown

import (
	"os"
	"sync"
)

// SignalCounter records delivered signals and calls onForce with the signal
// that brings the count to forceAfter. It backs the "first signal finishes
// the current trial, second signal exits" behaviour of Handler.
//
// Usage:
//
//	counter := NewSignalCounter(2, func(sig os.Signal) {
//	    logger.Warn("forced exit", zap.String("signal", sig.String()))
//	    os.Exit(core.ExitCodeForSignal(sig))
//	})
//
//	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
//	go func() {
//	    for sig := range sigCh {
//	        if counter.Record(sig) == 1 {
//	            cancel() // stop after the trial in flight
//	        }
//	        // onForce runs on its own once the threshold is reached
//	    }
//	}()
type SignalCounter struct {
	mu         sync.Mutex
	count      int
	last       os.Signal
	forceAfter int
	onForce    func(os.Signal)
}

// NewSignalCounter creates a counter.
//
// Parameters:
//   - forceAfter: signal count that triggers onForce; values below 1 become 1
//   - onForce: called once with the triggering signal; may be nil
func NewSignalCounter(forceAfter int, onForce func(os.Signal)) *SignalCounter {
	if forceAfter < 1 {
		forceAfter = 1
	}
	return &SignalCounter{forceAfter: forceAfter, onForce: onForce}
}

// Record counts sig and returns the new count. onForce runs under the lock,
// so it must exit the process or return quickly.
func (s *SignalCounter) Record(sig os.Signal) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.last = sig
	if s.count == s.forceAfter && s.onForce != nil {
		s.onForce(sig)
	}
	return s.count
}

// Count returns the number of signals seen.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Last returns the most recent signal, or nil.
func (s *SignalCounter) Last() os.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Reset forgets every recorded signal.
func (s *SignalCounter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count = 0
	s.last = nil
}
