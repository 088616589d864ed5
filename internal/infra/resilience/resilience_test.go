package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poupafin/poupafin-go/internal/infra/resilience"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	wantErr := errors.New("permanent error")
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls (1 + 2 retries), got %d", callCount)
	}
}

func TestRetryWithBackoff_RespectsContextCancellation(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 50 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- resilience.RetryWithBackoff(ctx, cfg, func() error {
			callCount++
			return errors.New("always fails")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-errCh
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBulkhead_TryAcquire(t *testing.T) {
	b := resilience.NewBulkhead(1)

	if !b.TryAcquire() {
		t.Fatal("expected first TryAcquire to succeed")
	}
	if b.TryAcquire() {
		t.Fatal("expected second TryAcquire to fail while slot held")
	}

	b.Release()
	if !b.TryAcquire() {
		t.Fatal("expected TryAcquire to succeed after release")
	}
}

func TestBulkhead_AcquireBlocksUntilRelease(t *testing.T) {
	b := resilience.NewBulkhead(1)

	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire to succeed, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := b.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while slot held, got %v", err)
	}
}
