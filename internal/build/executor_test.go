package build

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestExecutor_RunsEveryTask(t *testing.T) {
	ex := NewExecutor(4)
	results := make([]int, 100)
	err := ex.Run(context.Background(), len(results), func(ctx context.Context, i int) error {
		results[i] = i * i
		return nil
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for i, v := range results {
		if v != i*i {
			t.Fatalf("slot %d: expected %d, got %d", i, i*i, v)
		}
	}
}

func TestExecutor_FailurePropagation(t *testing.T) {
	ex := NewExecutor(2)
	boom := errors.New("boom")
	var ran int64
	err := ex.Run(context.Background(), 50, func(ctx context.Context, i int) error {
		atomic.AddInt64(&ran, 1)
		if i == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if atomic.LoadInt64(&ran) == 0 {
		t.Fatalf("expected some tasks to run")
	}
}

func TestExecutor_DefaultWorkers(t *testing.T) {
	if NewExecutor(0).Workers() <= 0 {
		t.Fatalf("expected positive default worker count")
	}
}

func TestExecutor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewExecutor(1).Run(ctx, 3, func(ctx context.Context, i int) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
