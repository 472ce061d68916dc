package locks_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"kaspimarket_api/pkg/locks"
)

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	l := locks.NewMemoryLocker()
	ctx := context.Background()

	release, ok, err := l.TryAcquire(ctx, "product:1")
	if err != nil || !ok {
		t.Fatalf("TryAcquire = %v, %v; want ok", ok, err)
	}

	_, ok, err = l.TryAcquire(ctx, "product:1")
	if err != nil {
		t.Fatalf("second TryAcquire: %v", err)
	}
	if ok {
		t.Error("second TryAcquire on the same key should fail")
	}

	release()

	_, ok, err = l.TryAcquire(ctx, "product:1")
	if err != nil || !ok {
		t.Errorf("TryAcquire after release = %v, %v; want ok", ok, err)
	}
}

func TestMemoryLocker_IndependentKeys(t *testing.T) {
	l := locks.NewMemoryLocker()
	ctx := context.Background()

	_, ok, _ := l.TryAcquire(ctx, "product:1")
	if !ok {
		t.Fatal("first key")
	}
	_, ok, _ = l.TryAcquire(ctx, "product:2")
	if !ok {
		t.Error("a different key must not be affected")
	}
}

func TestMemoryLocker_SingleWinnerUnderContention(t *testing.T) {
	l := locks.NewMemoryLocker()
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := l.TryAcquire(ctx, "product:1"); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Errorf("winners = %d, want exactly 1", got)
	}
}
