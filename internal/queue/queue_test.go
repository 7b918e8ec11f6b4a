package queue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/clawback/internal/audit"
	"github.com/Veraticus/clawback/internal/audit/mock_audit"
	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/queue"
	"github.com/golang/mock/gomock"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RunsAllJobs(t *testing.T) {
	q := queue.New(queue.Config{Workers: 3, Capacity: 16})
	q.Start(context.Background())
	defer q.Stop()

	var ran atomic.Int32
	ids := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		id, err := q.Submit(queue.Job{
			CaseID: "case-1",
			Name:   "count",
			Run: func(context.Context) error {
				ran.Add(1)
				return nil
			},
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	q.Drain()
	assert.Equal(t, int32(10), ran.Load())
	for _, id := range ids {
		state, ok := q.Status(id)
		require.True(t, ok)
		assert.Equal(t, queue.StateCompleted, state)
	}
}

func TestQueue_SerializesPerCase(t *testing.T) {
	q := queue.New(queue.Config{Workers: 4, Capacity: 16})
	q.Start(context.Background())
	defer q.Stop()

	var running, peak atomic.Int32
	for i := 0; i < 8; i++ {
		_, err := q.Submit(queue.Job{
			CaseID: "case-1",
			Run: func(context.Context) error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				running.Add(-1)
				return nil
			},
		})
		require.NoError(t, err)
	}

	q.Drain()
	assert.Equal(t, int32(1), peak.Load())
}

func TestQueue_DifferentCasesRunInParallel(t *testing.T) {
	q := queue.New(queue.Config{Workers: 2, Capacity: 4})
	q.Start(context.Background())
	defer q.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	both := make(chan struct{})
	go func() {
		wg.Wait()
		close(both)
	}()

	var timeouts atomic.Int32
	for _, c := range []string{"a", "b"} {
		_, err := q.Submit(queue.Job{
			CaseID: c,
			Run: func(context.Context) error {
				wg.Done()
				select {
				case <-both:
				case <-time.After(2 * time.Second):
					timeouts.Add(1)
				}
				return nil
			},
		})
		require.NoError(t, err)
	}

	q.Drain()
	assert.Zero(t, timeouts.Load())
}

func TestQueue_FullAndStopped(t *testing.T) {
	q := queue.New(queue.Config{Workers: 1, Capacity: 1})

	var doneErr error
	_, err := q.Submit(queue.Job{
		Run:    func(context.Context) error { return nil },
		OnDone: func(_ string, err error) { doneErr = err },
	})
	require.NoError(t, err)

	_, err = q.Submit(queue.Job{Run: func(context.Context) error { return nil }})
	require.ErrorIs(t, err, queue.ErrQueueFull)

	q.Stop()
	assert.ErrorIs(t, doneErr, queue.ErrQueueStopped)

	_, err = q.Submit(queue.Job{Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, queue.ErrQueueStopped)
}

func TestQueue_Failures(t *testing.T) {
	q := queue.New(queue.Config{Workers: 1, Capacity: 4})
	q.Start(context.Background())
	defer q.Stop()

	var (
		mu   sync.Mutex
		errs = map[string]error{}
	)
	onDone := func(id string, err error) {
		mu.Lock()
		errs[id] = err
		mu.Unlock()
	}

	failing, err := q.Submit(queue.Job{Run: func(context.Context) error { return common.ErrUnsupportedFormat }, OnDone: onDone})
	require.NoError(t, err)
	panicking, err := q.Submit(queue.Job{Run: func(context.Context) error { panic("boom") }, OnDone: onDone})
	require.NoError(t, err)

	q.Drain()

	state, _ := q.Status(failing)
	assert.Equal(t, queue.StateFailed, state)
	assert.ErrorIs(t, errs[failing], common.ErrUnsupportedFormat)

	state, _ = q.Status(panicking)
	assert.Equal(t, queue.StateFailed, state)
	assert.ErrorContains(t, errs[panicking], "panicked: boom")
}

func TestQueue_RetriesBusyStorage(t *testing.T) {
	q := queue.New(queue.Config{
		Workers:  1,
		Capacity: 1,
		Retry:    common.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond},
	})
	q.Start(context.Background())
	defer q.Stop()

	var attempts atomic.Int32
	id, err := q.Submit(queue.Job{Run: func(context.Context) error {
		if attempts.Add(1) == 1 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	}})
	require.NoError(t, err)

	q.Drain()
	assert.Equal(t, int32(2), attempts.Load())
	state, _ := q.Status(id)
	assert.Equal(t, queue.StateCompleted, state)
}

func TestQueue_RecordsTaskEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock_audit.NewMockAppender(ctrl)

	var (
		mu      sync.Mutex
		actions []string
	)
	store.EXPECT().
		AppendAuditEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event *model.AuditEvent) error {
			mu.Lock()
			actions = append(actions, event.Action)
			mu.Unlock()
			assert.Equal(t, audit.EntityTask, event.EntityType)
			assert.Equal(t, "process_document", event.Payload["job"])
			return nil
		}).
		Times(4)

	q := queue.New(queue.Config{Workers: 1, Capacity: 2, Audit: store})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Submit(queue.Job{CaseID: "case-1", Name: "process_document", Run: func(context.Context) error { return nil }})
	require.NoError(t, err)
	_, err = q.Submit(queue.Job{CaseID: "case-1", Name: "process_document", Run: func(context.Context) error {
		return errors.New("broken file")
	}})
	require.NoError(t, err)

	q.Drain()
	assert.Equal(t, []string{
		audit.ActionTaskStarted, audit.ActionTaskCompleted,
		audit.ActionTaskStarted, audit.ActionTaskFailed,
	}, actions)
}

func TestQueue_CancelSkipsUnstartedJobs(t *testing.T) {
	q := queue.New(queue.Config{Workers: 1, Capacity: 4})
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	defer q.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	var runningErr error
	first, err := q.Submit(queue.Job{CaseID: "a", Run: func(ctx context.Context) error {
		close(started)
		<-release
		runningErr = ctx.Err()
		return nil
	}})
	require.NoError(t, err)

	var ran atomic.Bool
	var doneErr error
	second, err := q.Submit(queue.Job{
		CaseID: "a",
		Run: func(context.Context) error {
			ran.Store(true)
			return nil
		},
		OnDone: func(_ string, err error) { doneErr = err },
	})
	require.NoError(t, err)

	<-started
	cancel()
	close(release)
	q.Drain()

	require.NoError(t, runningErr, "a running job keeps its context")
	state, _ := q.Status(first)
	assert.Equal(t, queue.StateCompleted, state)

	assert.False(t, ran.Load())
	assert.ErrorIs(t, doneErr, context.Canceled)
	state, _ = q.Status(second)
	assert.Equal(t, queue.StateCanceled, state)
}
