package db

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAsyncWriter_AppliesInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string

	w := NewAsyncWriter(func(s string) error {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
		return nil
	}, AsyncWriterConfig{})
	w.Start()

	for _, s := range []string{"first", "second", "third"} {
		if !w.Write(s) {
			t.Errorf("Write(%q) = false", s)
		}
	}
	if !w.Close(time.Second) {
		t.Fatal("Close() timed out")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != "first" || got[2] != "third" {
		t.Errorf("applied = %v", got)
	}
}

func TestAsyncWriter_FullQueue(t *testing.T) {
	// not started, so nothing drains
	w := NewAsyncWriter(func(int) error { return nil }, AsyncWriterConfig{QueueSize: 2})

	if !w.Write(1) || !w.Write(2) {
		t.Fatal("writes within capacity should be queued")
	}
	if w.Write(3) {
		t.Error("Write() on full queue = true")
	}
	if w.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", w.Pending())
	}
}

func TestAsyncWriter_CloseDrainsUnstarted(t *testing.T) {
	var applied atomic.Int64
	w := NewAsyncWriter(func(int) error {
		time.Sleep(time.Millisecond)
		applied.Add(1)
		return nil
	}, AsyncWriterConfig{QueueSize: 50})

	for i := 0; i < 20; i++ {
		w.Write(i)
	}
	if !w.Close(0) {
		t.Fatal("Close(0) = false")
	}
	if got := applied.Load(); got != 20 {
		t.Errorf("applied = %d, want 20", got)
	}
	if w.Write(21) {
		t.Error("Write() after Close = true")
	}
}

func TestAsyncWriter_OnError(t *testing.T) {
	var calls atomic.Int64
	w := NewAsyncWriter(func(string) error {
		return errors.New("disk full")
	}, AsyncWriterConfig{
		QueueSize: 4,
		OnError:   func(error) { calls.Add(1) },
	})
	w.Start()
	w.Start()
	w.Write("x")
	w.Write("y")
	w.Close(time.Second)

	if got := calls.Load(); got != 2 {
		t.Errorf("OnError called %d times, want 2", got)
	}
}

func TestAsyncWriter_CloseTimeout(t *testing.T) {
	release := make(chan struct{})
	w := NewAsyncWriter(func(int) error {
		<-release
		return nil
	}, AsyncWriterConfig{})
	w.Start()
	w.Write(1)

	if w.Close(10 * time.Millisecond) {
		t.Error("Close() = true while the handler is blocked")
	}
	close(release)
	if !w.Close(time.Second) {
		t.Error("second Close() timed out after release")
	}
}

func TestAsyncWriter_WriteRacingClose(t *testing.T) {
	for round := 0; round < 20; round++ {
		var applied, accepted atomic.Int64
		w := NewAsyncWriter(func(int) error {
			applied.Add(1)
			return nil
		}, AsyncWriterConfig{QueueSize: 8})
		w.Start()

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					if w.Write(i) {
						accepted.Add(1)
					}
				}
			}()
		}
		if !w.Close(5 * time.Second) {
			t.Fatal("Close() timed out")
		}
		wg.Wait()

		if applied.Load() != accepted.Load() {
			t.Fatalf("round %d: accepted %d values, applied %d", round, accepted.Load(), applied.Load())
		}
	}
}
