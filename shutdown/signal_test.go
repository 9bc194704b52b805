package shutdown

import (
	"context"
	"os"
	"sync"
	"syscall"
	"testing"

	"jpegsize/logging"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSignalCounter_Record(t *testing.T) {
	counter := NewSignalCounter(3, nil)
	if counter.Last() != nil {
		t.Errorf("Last() before any signal = %v", counter.Last())
	}
	sigs := []os.Signal{os.Interrupt, syscall.SIGTERM, os.Interrupt}
	for i, sig := range sigs {
		if got := counter.Record(sig); got != i+1 {
			t.Errorf("Record(%v) = %d, want %d", sig, got, i+1)
		}
		if counter.Last() != sig {
			t.Errorf("Last() = %v, want %v", counter.Last(), sig)
		}
	}
	counter.Reset()
	if counter.Count() != 0 || counter.Last() != nil {
		t.Errorf("after Reset: Count() = %d Last() = %v", counter.Count(), counter.Last())
	}
}

func TestSignalCounter_ForceCallback(t *testing.T) {
	var got []os.Signal
	counter := NewSignalCounter(2, func(sig os.Signal) { got = append(got, sig) })

	counter.Record(os.Interrupt)
	if len(got) != 0 {
		t.Error("callback should not be called on first signal")
	}
	counter.Record(syscall.SIGTERM)
	counter.Record(os.Interrupt)
	if len(got) != 1 || got[0] != syscall.SIGTERM {
		t.Errorf("callback got %v, want [SIGTERM]", got)
	}
}

func TestSignalCounter_Concurrent(t *testing.T) {
	counter := NewSignalCounter(1000, nil)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counter.Record(os.Interrupt)
		}()
	}
	wg.Wait()
	if counter.Count() != 100 {
		t.Errorf("Count() = %d, want 100", counter.Count())
	}
}

func TestHandler_FirstSignalCancels(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	forced := false
	ctx, h := NewHandler(context.Background(), logging.NewFromCore(core), 2, func(os.Signal) { forced = true })
	defer h.Stop()

	if h.Signal() != nil {
		t.Error("Signal() before delivery should be nil")
	}

	h.Deliver(os.Interrupt)
	select {
	case <-ctx.Done():
	default:
		t.Fatal("context not cancelled after first signal")
	}
	if forced {
		t.Error("force callback ran on first signal")
	}
	if h.Signal() != os.Interrupt {
		t.Errorf("Signal() = %v", h.Signal())
	}

	h.Deliver(syscall.SIGTERM)
	if !forced {
		t.Error("force callback did not run on second signal")
	}
	if h.Signal() != syscall.SIGTERM {
		t.Errorf("Signal() = %v, want SIGTERM", h.Signal())
	}
	if logs.Len() != 2 {
		t.Errorf("logged %d warnings, want 2", logs.Len())
	}
}

func TestHandler_StopIsIdempotent(t *testing.T) {
	ctx, h := NewHandler(context.Background(), nil, 2, nil)
	h.Start(os.Interrupt)
	h.Stop()
	h.Stop()
	if ctx.Err() == nil {
		t.Error("Stop() should release the context")
	}
}
