package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocalLockerSerializes(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "match:1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside)
	}
	if len(locker.locks) != 0 {
		t.Fatalf("expected lock table to be empty, got %d entries", len(locker.locks))
	}
}

func TestLocalLockerRespectsContext(t *testing.T) {
	locker := NewLocalLocker()
	unlock, err := locker.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// other keys are independent
	other, err := locker.Lock(context.Background(), "other")
	if err != nil {
		t.Fatalf("lock other: %v", err)
	}
	other()
	other()
}

func TestRebind(t *testing.T) {
	got := rebind("SELECT a FROM t WHERE x = ? AND y IN (?, ?)")
	want := "SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
