package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestStartRunsJobImmediately(t *testing.T) {
	var runs atomic.Int32
	s := New(testLogger())
	s.Add(Job{
		Name:     "sync",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	s.Wait()

	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1 (hour-long interval should not tick)", got)
	}
}

func TestTriggerUnknownJob(t *testing.T) {
	s := New(testLogger())
	if err := s.Trigger(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestTriggerSkipsOverlappingRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	s := New(testLogger())
	s.Add(Job{
		Name:     "slow",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			if runs.Add(1) == 1 {
				close(started)
				<-release
			}
			return nil
		},
	})

	if err := s.Trigger(context.Background(), "slow"); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	<-started

	// Second trigger while the first is still in flight must be a no-op.
	if err := s.Trigger(context.Background(), "slow"); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	s.Wait()

	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestJobPanicIsRecovered(t *testing.T) {
	s := New(testLogger())
	s.Add(Job{
		Name:     "explosive",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			panic("boom")
		},
	})

	if err := s.Trigger(context.Background(), "explosive"); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	s.Wait()
	// Reaching here without the test binary dying is the assertion.
}

func TestJobTimeoutCancelsContext(t *testing.T) {
	var sawDeadline atomic.Bool
	s := New(testLogger())
	s.Add(Job{
		Name:     "timed",
		Interval: time.Hour,
		Timeout:  20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				sawDeadline.Store(true)
				return ctx.Err()
			case <-time.After(2 * time.Second):
				return errors.New("context never expired")
			}
		},
	})

	if err := s.Trigger(context.Background(), "timed"); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	s.Wait()

	if !sawDeadline.Load() {
		t.Error("job context did not expire at the timeout")
	}
}
