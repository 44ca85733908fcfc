package worker

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// TestWorkerPool_RunsSubmittedTasks tests that submitted tasks all execute
func TestWorkerPool_RunsSubmittedTasks(t *testing.T) {
	pool := NewWorkerPool(2, 16, zerolog.Nop())

	var ran atomic.Int64
	for i := 0; i < 10; i++ {
		pool.Submit(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	pool.Shutdown()
	assert.Equal(t, int64(10), ran.Load())
}

// TestWorkerPool_DropsTasksAfterShutdown tests that late submissions are
// dropped instead of panicking on a closed queue
func TestWorkerPool_DropsTasksAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1, 4, zerolog.Nop())
	pool.Shutdown()

	var ran atomic.Int64
	pool.Submit(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	assert.Equal(t, int64(0), ran.Load())
}

// TestWorkerPool_TaskErrorDoesNotStopWorkers tests that a failing task leaves
// the pool serving later tasks
func TestWorkerPool_TaskErrorDoesNotStopWorkers(t *testing.T) {
	pool := NewWorkerPool(1, 4, zerolog.Nop())

	var ran atomic.Int64
	pool.Submit(func(ctx context.Context) error {
		return assert.AnError
	})
	pool.Submit(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	pool.Shutdown()
	assert.Equal(t, int64(1), ran.Load())
}
