package grade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/kampuslab/kampus/core"
)

// jobTimeout bounds a single queued recomputation.
const jobTimeout = 30 * time.Second

// Trigger is told about every score write, so that the final grade of the pair gets recomputed.
type Trigger interface {
	ScoreChanged(ctx context.Context, studentID, courseID string)
}

// NewTrigger returns the Trigger matching the configured recompute mode.
// The returned stop func drains the pending recomputations, if any.
func NewTrigger(conf *core.Config, agg Recomputer, logger core.Logger) (Trigger, func(context.Context) error) {
	if conf.Grading.RecomputeMode == core.RecomputeAsync {
		q := NewQueue(agg, logger, conf.Grading.RecomputeWorkers)
		q.Start()
		return q, q.Stop
	}
	return NewSyncTrigger(agg, logger), func(context.Context) error { return nil }
}

func logRecomputeErr(logger core.Logger, studentID, courseID string, err error) {
	msg := fmt.Sprintf("recomputing final grade %s/%s: %v", studentID, courseID, err)
	switch errors.Cause(err) {
	case ErrNoScores, ErrStudentNotEligible, ErrStudentNotFound, ErrCourseNotFound:
		// the stored final grade, if any, is kept as is
		logger.Info(msg)
	default:
		logger.Error(msg, err)
	}
}

// SyncTrigger recomputes inline, within the score write's request.
type SyncTrigger struct {
	agg    Recomputer
	logger core.Logger
}

var _ Trigger = (*SyncTrigger)(nil)

func NewSyncTrigger(agg Recomputer, logger core.Logger) *SyncTrigger {
	return &SyncTrigger{agg: agg, logger: logger}
}

func (t *SyncTrigger) ScoreChanged(ctx context.Context, studentID, courseID string) {
	if _, err := t.agg.Recompute(ctx, studentID, courseID); err != nil {
		logRecomputeErr(t.logger, studentID, courseID, err)
	}
}

// Key identifies a final grade.
type Key struct {
	StudentID string
	CourseID  string
}

// Queue recomputes final grades on background workers.
//
// Every enqueued key is recomputed at least once after it was enqueued.
// Keys are coalesced: a key waiting in the queue is not queued twice, and a key
// enqueued while being recomputed is recomputed once more when its run is over.
type Queue struct {
	agg     Recomputer
	logger  core.Logger
	workers int

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Key
	queued  map[Key]bool
	running map[Key]bool
	rerun   map[Key]bool
	started bool
	closed  bool
	wg      sync.WaitGroup
}

var _ Trigger = (*Queue)(nil)

func NewQueue(agg Recomputer, logger core.Logger, workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	q := &Queue{
		agg:     agg,
		logger:  logger,
		workers: workers,
		queued:  make(map[Key]bool),
		running: make(map[Key]bool),
		rerun:   make(map[Key]bool),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the workers. It is a no-op if the queue was already started.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	q.wg.Add(q.workers)
	for i := 0; i < q.workers; i++ {
		go q.work()
	}
}

// ScoreChanged enqueues the key. The request's ctx is not used by the recomputation.
func (q *Queue) ScoreChanged(_ context.Context, studentID, courseID string) {
	if !q.Enqueue(Key{StudentID: studentID, CourseID: courseID}) {
		q.logger.Warn(fmt.Sprintf("recompute queue stopped: dropping final grade %s/%s", studentID, courseID))
	}
}

// Enqueue schedules the key for recomputation. It returns false once the queue is stopped.
func (q *Queue) Enqueue(k Key) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	switch {
	case q.queued[k]:
	case q.running[k]:
		q.rerun[k] = true
	default:
		q.push(k)
	}
	return true
}

// Len returns the number of keys waiting to be recomputed.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// push must be called with q.mu held.
func (q *Queue) push(k Key) {
	q.queued[k] = true
	q.pending = append(q.pending, k)
	q.cond.Signal()
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		k := q.pending[0]
		q.pending = q.pending[1:]
		delete(q.queued, k)
		q.running[k] = true
		q.mu.Unlock()

		q.process(k)

		q.mu.Lock()
		delete(q.running, k)
		if q.rerun[k] {
			delete(q.rerun, k)
			if !q.queued[k] {
				q.push(k)
			}
		}
		q.mu.Unlock()
	}
}

func (q *Queue) process(k Key) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := q.agg.Recompute(ctx, k.StudentID, k.CourseID); err != nil {
		logRecomputeErr(q.logger, k.StudentID, k.CourseID, err)
	}
}

// Stop stops accepting keys and waits for the pending ones to be recomputed, or for ctx to be done.
// Keys enqueued on a queue that was never started are recomputed by Stop itself.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	started := q.started
	q.cond.Broadcast()
	q.mu.Unlock()

	if !started {
		return q.drain(ctx)
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "draining recompute queue")
	}
}

func (q *Queue) drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "draining recompute queue")
		}
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return nil
		}
		k := q.pending[0]
		q.pending = q.pending[1:]
		delete(q.queued, k)
		q.mu.Unlock()

		q.process(k)
	}
}
