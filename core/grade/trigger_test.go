package grade

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kampuslab/kampus/core"
	testutil "github.com/kampuslab/kampus/tests"
)

// fakeRecomputer counts the recomputations per key. When block is set, each call waits for release.
type fakeRecomputer struct {
	mu      sync.Mutex
	calls   map[Key]int
	err     error
	block   bool
	started chan Key
	release chan struct{}
}

func newFakeRecomputer(block bool) *fakeRecomputer {
	return &fakeRecomputer{
		calls:   make(map[Key]int),
		block:   block,
		started: make(chan Key, 100),
		release: make(chan struct{}),
	}
}

func (r *fakeRecomputer) Recompute(ctx context.Context, studentID, courseID string) (FinalGrade, error) {
	k := Key{StudentID: studentID, CourseID: courseID}
	r.started <- k
	if r.block {
		select {
		case <-r.release:
		case <-ctx.Done():
			return FinalGrade{}, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[k]++
	return FinalGrade{StudentID: studentID, CourseID: courseID}, r.err
}

func (r *fakeRecomputer) count(k Key) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[k]
}

func testLogger() core.Logger {
	return testutil.NewLogger(testutil.NewConfig())
}

func TestSyncTrigger_ScoreChanged(t *testing.T) {
	rc := newFakeRecomputer(false)
	trigger := NewSyncTrigger(rc, testLogger())

	trigger.ScoreChanged(context.Background(), "s1", "c1")
	assert.Equal(t, 1, rc.count(Key{"s1", "c1"}))

	// errors are logged, not returned
	rc.err = ErrNoScores
	trigger.ScoreChanged(context.Background(), "s1", "c1")
	assert.Equal(t, 2, rc.count(Key{"s1", "c1"}))
}

func TestNewTrigger(t *testing.T) {
	conf := testutil.NewConfig()
	rc := newFakeRecomputer(false)

	conf.Grading.RecomputeMode = core.RecomputeSync
	trigger, stop := NewTrigger(conf, rc, testLogger())
	assert.IsType(t, (*SyncTrigger)(nil), trigger)
	assert.NoError(t, stop(context.Background()))

	conf.Grading.RecomputeMode = core.RecomputeAsync
	conf.Grading.RecomputeWorkers = 2
	trigger, stop = NewTrigger(conf, rc, testLogger())
	require.IsType(t, (*Queue)(nil), trigger)
	trigger.ScoreChanged(context.Background(), "s1", "c1")
	require.NoError(t, stop(context.Background()))
	assert.Equal(t, 1, rc.count(Key{"s1", "c1"}))
}

func TestQueue_coalescing(t *testing.T) {
	rc := newFakeRecomputer(false)
	q := NewQueue(rc, testLogger(), 2)

	k1, k2 := Key{"s1", "c1"}, Key{"s2", "c1"}
	for i := 0; i < 3; i++ {
		require.True(t, q.Enqueue(k1))
	}
	require.True(t, q.Enqueue(k2))
	assert.Equal(t, 2, q.Len())

	q.Start()
	require.NoError(t, q.Stop(context.Background()))

	assert.Equal(t, 1, rc.count(k1))
	assert.Equal(t, 1, rc.count(k2))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_rerunWhileRunning(t *testing.T) {
	rc := newFakeRecomputer(true)
	q := NewQueue(rc, testLogger(), 1)
	q.Start()

	k := Key{"s1", "c1"}
	require.True(t, q.Enqueue(k))
	select {
	case <-rc.started:
	case <-time.After(5 * time.Second):
		t.Fatal("recomputation never started")
	}

	// enqueued twice while running: recomputed once more
	require.True(t, q.Enqueue(k))
	require.True(t, q.Enqueue(k))
	assert.Equal(t, 0, q.Len())

	close(rc.release)
	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, 2, rc.count(k))
}

func TestQueue_Stop(t *testing.T) {
	t.Run("not started", func(t *testing.T) {
		q := NewQueue(newFakeRecomputer(false), testLogger(), 1)
		assert.NoError(t, q.Stop(context.Background()))
		assert.False(t, q.Enqueue(Key{"s1", "c1"}))
	})

	t.Run("not started recomputes enqueued keys", func(t *testing.T) {
		rc := newFakeRecomputer(false)
		q := NewQueue(rc, testLogger(), 2)
		k1, k2 := Key{"s1", "c1"}, Key{"s2", "c1"}
		require.True(t, q.Enqueue(k1))
		require.True(t, q.Enqueue(k2))
		require.True(t, q.Enqueue(k1))

		require.NoError(t, q.Stop(context.Background()))
		assert.Equal(t, 1, rc.count(k1))
		assert.Equal(t, 1, rc.count(k2))
		assert.Equal(t, 0, q.Len())
	})

	t.Run("not started with context done", func(t *testing.T) {
		rc := newFakeRecomputer(false)
		q := NewQueue(rc, testLogger(), 1)
		require.True(t, q.Enqueue(Key{"s1", "c1"}))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Error(t, q.Stop(ctx))
		assert.Equal(t, 0, rc.count(Key{"s1", "c1"}))
		assert.Equal(t, 1, q.Len())
	})

	t.Run("drains pending keys", func(t *testing.T) {
		rc := newFakeRecomputer(false)
		q := NewQueue(rc, testLogger(), 3)
		q.Start()

		keys := make([]Key, 0, 50)
		for i := 0; i < 50; i++ {
			k := Key{StudentID: string(rune('a' + i%26)), CourseID: string(rune('A' + i/26))}
			keys = append(keys, k)
			q.Enqueue(k)
		}
		require.NoError(t, q.Stop(context.Background()))

		for _, k := range keys {
			assert.GreaterOrEqualf(t, rc.count(k), 1, "key %v never recomputed", k)
		}
		assert.False(t, q.Enqueue(keys[0]))
	})

	t.Run("context done", func(t *testing.T) {
		rc := newFakeRecomputer(true)
		q := NewQueue(rc, testLogger(), 1)
		q.Start()
		q.Enqueue(Key{"s1", "c1"})
		<-rc.started

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.Error(t, q.Stop(ctx))

		close(rc.release)
		assert.NoError(t, q.Stop(context.Background()))
		assert.Equal(t, 1, rc.count(Key{"s1", "c1"}))
	})
}
