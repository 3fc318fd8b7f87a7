package utils

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_RunsAllJobs(t *testing.T) {
	pool := NewWorkerPool(4, 16)
	pool.Start()
	defer pool.Stop()

	var counter atomic.Int64
	var wg sync.WaitGroup

	const jobs = 100
	for range jobs {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		})
	}
	wg.Wait()

	assert.EqualValues(t, jobs, counter.Load())
}

func TestWorkerPool_PanicDoesNotKillWorker(t *testing.T) {
	pool := NewWorkerPool(1, 4)
	pool.Start()
	defer pool.Stop()

	pool.Submit(func() {
		panic("boom")
	})

	// 唯一的 worker 在 panic 后仍能继续接任务
	done := make(chan struct{})
	pool.Submit(func() {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker 在 panic 后未恢复")
	}
}

func TestWorkerPool_SubmitBlocksWhenFull(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	pool.Start()
	defer pool.Stop()

	release := make(chan struct{})
	pool.Submit(func() { <-release })
	pool.Submit(func() {}) // 占满队列

	submitted := make(chan struct{})
	go func() {
		pool.Submit(func() {})
		close(submitted)
	}()

	select {
	case <-submitted:
		t.Fatal("队列已满时 Submit 不应立即返回")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("释放后 Submit 仍然阻塞")
	}
}
