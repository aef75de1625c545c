package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLocalOCRPlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	ocr := NewLocalOCR()
	res, err := ocr.Process(context.Background(), path, ModeFast)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Text != "hello world" {
		t.Errorf("text: got %q", res.Text)
	}
	if res.PageCount != 1 {
		t.Errorf("page count: got %d", res.PageCount)
	}
}

func TestRateLimiterBlocksThenRefills(t *testing.T) {
	rl := NewRateLimiter(1, 100) // 1 token, refills fast
	ctx := context.Background()

	if err := rl.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	start := time.Now()
	if err := rl.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("expected fast refill at 100 tokens/sec")
	}
}

func TestRateLimiterRespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(1, 0.001) // essentially never refills
	ctx := context.Background()
	rl.Acquire(ctx)

	cctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := rl.Acquire(cctx); err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestCircuitBreakerTripsOpen(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open after threshold failures, got %s", cb.State())
	}
	if err := cb.Allow(); err != ErrCircuitOpen {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenThenRecovers(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatal("expected open")
	}

	time.Sleep(20 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected half-open trial to be allowed, got %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half_open, got %s", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after success, got %s", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	cb.Allow() // transitions to half-open
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected reopen after half-open failure, got %s", cb.State())
	}
}
