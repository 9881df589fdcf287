package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/config"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu     sync.Mutex
	lists  map[string][]string
	locks  map[string]string
	setErr error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{lists: map[string][]string{}, locks: map[string]string{}}
}

func (q *fakeQueue) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, v := range values {
		switch b := v.(type) {
		case []byte:
			q.lists[key] = append(q.lists[key], string(b))
		default:
			q.lists[key] = append(q.lists[key], fmt.Sprint(b))
		}
	}
	return redis.NewIntResult(int64(len(q.lists[key])), nil)
}

func (q *fakeQueue) BLPop(_ context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, key := range keys {
		if items := q.lists[key]; len(items) > 0 {
			q.lists[key] = items[1:]
			return redis.NewStringSliceResult([]string{key, items[0]}, nil)
		}
	}
	return redis.NewStringSliceResult(nil, redis.Nil)
}

func (q *fakeQueue) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.setErr != nil {
		return redis.NewBoolResult(false, q.setErr)
	}
	if _, held := q.locks[key]; held {
		return redis.NewBoolResult(false, nil)
	}
	q.locks[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (q *fakeQueue) Del(_ context.Context, keys ...string) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := q.locks[key]; ok {
			delete(q.locks, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (q *fakeQueue) pending() []model.DeclarationJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	var jobs []model.DeclarationJob
	for _, raw := range q.lists[config.WorkerKey.DeclareResultsQueue] {
		var job model.DeclarationJob
		_ = json.Unmarshal([]byte(raw), &job)
		jobs = append(jobs, job)
	}
	return jobs
}

type fakeDeclarer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *fakeDeclarer) DeclareRun(_ context.Context, runID, testID, _ string) (*model.DeclarationSummary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, runID)
	return &model.DeclarationSummary{RunID: runID, TestID: testID, DeclaredCount: 2}, d.err
}

func TestEnqueueThenProcess(t *testing.T) {
	q := newFakeQueue()
	d := &fakeDeclarer{}
	w := NewDeclarationWorker(q, d, zerolog.Nop())

	require.NoError(t, w.Enqueue(context.Background(), model.DeclarationJob{RunID: "run-1", TestID: "test-go", DeclaredBy: "emp-1"}))
	require.Len(t, q.pending(), 1)

	w.processNext(context.Background())

	assert.Equal(t, []string{"run-1"}, d.calls)
	assert.Empty(t, q.pending())
	assert.Empty(t, q.locks, "lock must be released")
}

func TestHandle_LockHeldDropsJob(t *testing.T) {
	q := newFakeQueue()
	q.locks[config.CacheKey.DeclarationLockKey("test-go")] = "other-run"
	d := &fakeDeclarer{}
	w := NewDeclarationWorker(q, d, zerolog.Nop())

	w.handle(context.Background(), model.DeclarationJob{RunID: "run-2", TestID: "test-go"})

	assert.Empty(t, d.calls)
	assert.Empty(t, q.pending())
	assert.Equal(t, "other-run", q.locks[config.CacheKey.DeclarationLockKey("test-go")])
}

func TestHandle_Requeue(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		attempt  int
		requeued bool
		nextTry  int
	}{
		{"stalled run is retried", fmt.Errorf("%w: no progress", service.ErrDeclarationStalled), 0, true, 1},
		{"store error is retried", errors.New("connection reset"), 1, true, 2},
		{"last attempt is dropped", errors.New("connection reset"), MaxJobAttempts - 1, false, 0},
		{"missing test is dropped", fmt.Errorf("load test: %w", service.ErrNotFound), 0, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newFakeQueue()
			d := &fakeDeclarer{err: tt.err}
			w := NewDeclarationWorker(q, d, zerolog.Nop())

			w.handle(context.Background(), model.DeclarationJob{RunID: "run-3", TestID: "test-go", Attempt: tt.attempt})

			jobs := q.pending()
			if !tt.requeued {
				assert.Empty(t, jobs)
				return
			}
			require.Len(t, jobs, 1)
			assert.Equal(t, "run-3", jobs[0].RunID)
			assert.Equal(t, tt.nextTry, jobs[0].Attempt)
			assert.Empty(t, q.locks)
		})
	}
}

func TestHandle_LockErrorRequeues(t *testing.T) {
	q := newFakeQueue()
	q.setErr = errors.New("redis down")
	d := &fakeDeclarer{}
	w := NewDeclarationWorker(q, d, zerolog.Nop())

	w.handle(context.Background(), model.DeclarationJob{RunID: "run-4", TestID: "test-go"})

	assert.Empty(t, d.calls)
	require.Len(t, q.pending(), 1)
	assert.Equal(t, 1, q.pending()[0].Attempt)
}

func TestStart_StopsOnCancel(t *testing.T) {
	w := NewDeclarationWorker(newFakeQueue(), &fakeDeclarer{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
