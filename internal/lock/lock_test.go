package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, GroupKey("g1"))
			if err != nil {
				t.Errorf("Lock failed: %v", err)
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
		t.Errorf("Expected at most one holder, saw %d", maxInside)
	}
	if len(l.locks) != 0 {
		t.Errorf("Expected entries to be released, got %d", len(l.locks))
	}
}

func TestLocalDifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, AccountKey("a"))
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	other, err := l.Lock(ctx, AccountKey("b"))
	if err != nil {
		t.Fatalf("Lock on other key failed: %v", err)
	}
	other()
}

func TestLocalHonorsContext(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}

	unlock()
	unlock() // second call is a no-op

	again, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock after release failed: %v", err)
	}
	again()
}

type countingExtender struct {
	mu    sync.Mutex
	calls int
}

func (e *countingExtender) ExtendContext(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return true, nil
}

func (e *countingExtender) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func TestKeepAliveExtendsUntilStopped(t *testing.T) {
	e := &countingExtender{}
	stop := keepAlive(e, "group:g1", 5*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for e.count() < 2 {
		if time.Now().After(deadline) {
			stop()
			t.Fatalf("Expected at least 2 extensions, got %d", e.count())
		}
		time.Sleep(time.Millisecond)
	}

	stop()
	after := e.count()
	time.Sleep(20 * time.Millisecond)
	if got := e.count(); got != after {
		t.Errorf("Extended after stop: %d -> %d", after, got)
	}
}
