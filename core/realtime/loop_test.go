package realtime

import (
	"context"
	"errors"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	loop := NewLoop(4)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(cancel)
	return loop, cancel
}

func TestLoopRunsTasksInOrder(t *testing.T) {
	loop, _ := startLoop(t)

	var got []int
	for i := range 10 {
		if err := loop.Post(context.Background(), func() { got = append(got, i) }); err != nil {
			t.Fatalf("Post: %v", err)
		}
	}
	if err := loop.Deliver(time.Second, func() {}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	for i, value := range got {
		if value != i {
			t.Fatalf("tasks ran out of order: %v", got)
		}
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 tasks, got %d", len(got))
	}
}

func TestLoopDeliverWaitsForCompletion(t *testing.T) {
	loop, _ := startLoop(t)

	ran := false
	if err := loop.Deliver(time.Second, func() { ran = true }); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if !ran {
		t.Fatal("Deliver returned before the task ran")
	}
}

func TestLoopDeliverAfterStop(t *testing.T) {
	loop, cancel := startLoop(t)
	cancel()
	<-loop.Stopped()

	if err := loop.Deliver(time.Second, func() { t.Error("task ran on a stopped loop") }); !errors.Is(err, ErrLoopStopped) {
		t.Fatalf("expected ErrLoopStopped, got %v", err)
	}
	if err := loop.Post(context.Background(), func() {}); !errors.Is(err, ErrLoopStopped) {
		t.Fatalf("expected ErrLoopStopped from Post, got %v", err)
	}
}

func TestLoopDeliverTimesOut(t *testing.T) {
	loop, _ := startLoop(t)

	release := make(chan struct{})
	defer close(release)
	if err := loop.Post(context.Background(), func() { <-release }); err != nil {
		t.Fatalf("Post: %v", err)
	}

	started := time.Now()
	err := loop.Deliver(20*time.Millisecond, func() {})
	if !errors.Is(err, ErrDeliveryTimeout) {
		t.Fatalf("expected ErrDeliveryTimeout, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("Deliver did not respect its timeout, took %s", elapsed)
	}
}

func TestLoopPostHonoursContext(t *testing.T) {
	loop := NewLoop(1)
	if err := loop.Post(context.Background(), func() {}); err != nil {
		t.Fatalf("Post: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	// nothing drains the loop, so the second post has to give up
	if err := loop.Post(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
