// Package queue runs background jobs on a fixed pool of workers.
//
// Jobs that share a case key never overlap: deduplication and rule
// evaluation read the whole case, so two documents of one case are
// processed one after the other while different cases run in parallel.
package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Veraticus/clawback/internal/audit"
	"github.com/Veraticus/clawback/internal/common"
	"github.com/google/uuid"
)

// Queue errors.
var (
	ErrQueueFull    = errors.New("queue is full")
	ErrQueueStopped = errors.New("queue is stopped")
)

// Default pool dimensions.
const (
	DefaultWorkers  = 2
	DefaultCapacity = 64
)

// State is the lifecycle position of a submitted job.
type State string

// Job states.
const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Job is one unit of background work.
type Job struct {
	// CaseID serializes jobs of the same case.
	CaseID string
	// Name identifies the job kind in logs and audit events.
	Name string
	Run  func(ctx context.Context) error
	// OnDone is called after the job finished, with its final error.
	OnDone func(id string, err error)
}

// Config dimensions the queue.
type Config struct {
	// Audit receives task events when set.
	Audit    audit.Appender
	Retry    common.RetryOptions
	Workers  int
	Capacity int
}

type task struct {
	job Job
	id  string
}

// Queue is a bounded job queue owned by its creator.
type Queue struct {
	cfg     Config
	tasks   chan task
	workers sync.WaitGroup
	pending sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
	states  map[string]State
	cases   map[string]*sync.Mutex
}

// New creates a queue. Start must be called before jobs run.
func New(cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	return &Queue{
		cfg:    cfg,
		tasks:  make(chan task, cfg.Capacity),
		states: make(map[string]State),
		cases:  make(map[string]*sync.Mutex),
	}
}

// Start launches the workers. Cancelling ctx never interrupts a running job;
// jobs that have not started yet finish as canceled without running.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true

	for i := 0; i < q.cfg.Workers; i++ {
		q.workers.Add(1)
		go func(workerID int) {
			defer q.workers.Done()
			for t := range q.tasks {
				q.execute(ctx, workerID, t)
			}
		}(i)
	}

	common.LogDebug("queue started", common.Fields{
		"workers":  q.cfg.Workers,
		"capacity": q.cfg.Capacity,
	})
}

// Submit enqueues a job without waiting and returns its id.
func (q *Queue) Submit(job Job) (string, error) {
	if job.Run == nil {
		return "", errors.New("job has no run function")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return "", ErrQueueStopped
	}

	t := task{id: uuid.NewString(), job: job}
	q.pending.Add(1)
	select {
	case q.tasks <- t:
		q.states[t.id] = StateQueued
		return t.id, nil
	default:
		q.pending.Done()
		return "", fmt.Errorf("%w: capacity %d", ErrQueueFull, q.cfg.Capacity)
	}
}

// Status returns the state of a submitted job.
func (q *Queue) Status(id string) (State, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.states[id]
	return s, ok
}

// Drain blocks until every job submitted so far has finished.
func (q *Queue) Drain() {
	q.pending.Wait()
}

// Stop rejects new jobs, lets the queued ones finish and waits for the workers.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	started := q.started
	close(q.tasks)
	q.mu.Unlock()

	if !started {
		// nothing will consume the buffered tasks
		for t := range q.tasks {
			q.finish(t, StateFailed, ErrQueueStopped)
		}
	}
	q.workers.Wait()
	common.LogDebug("queue stopped", nil)
}

func (q *Queue) execute(ctx context.Context, workerID int, t task) {
	lock := q.caseLock(t.job.CaseID)
	lock.Lock()
	defer lock.Unlock()

	fields := common.Fields{
		"task_id": t.id,
		"job":     t.job.Name,
		"case_id": t.job.CaseID,
		"worker":  workerID,
	}
	if err := ctx.Err(); err != nil {
		common.LogDebug("task canceled before start", fields)
		q.finish(t, StateCanceled, err)
		return
	}
	ctx = context.WithoutCancel(ctx)

	q.setState(t.id, StateRunning)
	common.LogDebug("task started", fields)
	q.record(ctx, t, audit.ActionTaskStarted, nil)

	start := time.Now()
	err := common.WithRetry(ctx, func() error {
		return runSafely(ctx, t.job.Run)
	}, q.cfg.Retry)

	if err != nil {
		common.LogError(err, "task failed", fields)
		q.record(ctx, t, audit.ActionTaskFailed, map[string]any{"error": err.Error()})
		q.finish(t, StateFailed, err)
		return
	}

	fields["duration_ms"] = time.Since(start).Milliseconds()
	common.LogInfo("task completed", fields)
	q.record(ctx, t, audit.ActionTaskCompleted, nil)
	q.finish(t, StateCompleted, nil)
}

// runSafely turns a panicking job into an error so the worker survives.
func runSafely(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return run(ctx)
}

func (q *Queue) finish(t task, state State, err error) {
	q.setState(t.id, state)
	if t.job.OnDone != nil {
		t.job.OnDone(t.id, err)
	}
	q.pending.Done()
}

func (q *Queue) record(ctx context.Context, t task, action string, payload map[string]any) {
	if q.cfg.Audit == nil || t.job.CaseID == "" {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["job"] = t.job.Name
	if err := audit.Record(context.WithoutCancel(ctx), q.cfg.Audit, t.job.CaseID, action, audit.EntityTask, t.id, payload); err != nil {
		common.LogWarn("failed to record task event", common.Fields{"task_id": t.id, "error": err.Error()})
	}
}

func (q *Queue) setState(id string, s State) {
	q.mu.Lock()
	q.states[id] = s
	q.mu.Unlock()
}

func (q *Queue) caseLock(caseID string) *sync.Mutex {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.cases[caseID]
	if !ok {
		m = &sync.Mutex{}
		q.cases[caseID] = m
	}
	return m
}
