package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTryAcquireBurst(t *testing.T) {
	l := New(3, time.Hour) // window long enough that tokens never refill mid-test

	for i := range 3 {
		if !l.TryAcquire() {
			t.Fatalf("TryAcquire() call %d = false, want true within burst", i+1)
		}
	}
	if l.TryAcquire() {
		t.Error("TryAcquire() beyond burst = true, want false")
	}
}

func TestAcquireWithinBurst(t *testing.T) {
	l := New(2, time.Second)
	ctx := context.Background()

	start := time.Now()
	for i := range 2 {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() call %d error = %v", i+1, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Acquire() within burst took %v, want immediate", elapsed)
	}
}

func TestAcquireCancelled(t *testing.T) {
	l := New(1, time.Hour)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}

	// The next permit is an hour away; cancellation must unblock the wait.
	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := l.Acquire(cancelCtx); err == nil {
		t.Error("Acquire() after burst with cancelled context = nil, want error")
	}
}

func TestNewClamping(t *testing.T) {
	l := New(0, -time.Second)
	if l.Permits() != 1 {
		t.Errorf("Permits() = %d, want clamped to 1", l.Permits())
	}
	if l.Window() != time.Second {
		t.Errorf("Window() = %v, want clamped to 1s", l.Window())
	}
}

func TestDefault(t *testing.T) {
	l := Default()
	if l.Permits() != 2 {
		t.Errorf("Default().Permits() = %d, want 2", l.Permits())
	}
	if l.Window() != time.Second {
		t.Errorf("Default().Window() = %v, want 1s", l.Window())
	}
}
