package grade

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/user"
)

var (
	// errors
	ErrStudentNotFound     = errors.New("student not found")
	ErrCourseNotFound      = errors.New("course not found")
	ErrStudentNotEligible  = errors.New("user is not a student")
	ErrNoScores            = errors.New("no scores recorded for this student in this course")
	ErrPersistenceConflict = errors.New("final grade was concurrently modified")
	ErrScoreNotFound       = errors.New("score not found")
	ErrFinalGradeNotFound  = errors.New("final grade not found")
)

// IsNotFound reports whether err is caused by an unknown student or course.
func IsNotFound(err error) bool {
	switch errors.Cause(err) {
	case ErrStudentNotFound, ErrCourseNotFound:
		return true
	}
	return false
}

// Recomputer recomputes the final grade of a (student, course) pair.
type Recomputer interface {
	Recompute(ctx context.Context, studentID, courseID string) (FinalGrade, error)
}

// Change describes a stored final grade being replaced. Previous is nil on first computation.
type Change struct {
	Previous *FinalGrade
	Current  FinalGrade
}

func (c Change) LetterChanged() bool {
	return c.Previous == nil || c.Previous.Letter != c.Current.Letter
}

// Listener is notified after a final grade has been stored.
type Listener interface {
	FinalGradeChanged(ctx context.Context, change Change)
}

// Aggregator computes and stores final grades from recorded scores.
type Aggregator struct {
	usrRepo   user.Repository
	crsRepo   course.Repository
	repo      Repository
	tx        core.TxRunner
	logger    core.Logger
	locks     *keyedMutex
	mu        sync.RWMutex
	listeners []Listener
}

var _ Recomputer = (*Aggregator)(nil)

func NewAggregator(usrRepo user.Repository, crsRepo course.Repository, repo Repository, tx core.TxRunner, logger core.Logger) *Aggregator {
	return &Aggregator{
		usrRepo: usrRepo,
		crsRepo: crsRepo,
		repo:    repo,
		tx:      tx,
		logger:  logger,
		locks:   newKeyedMutex(),
	}
}

// Subscribe registers l to be notified of every stored final grade.
func (agg *Aggregator) Subscribe(l Listener) {
	agg.mu.Lock()
	defer agg.mu.Unlock()
	agg.listeners = append(agg.listeners, l)
}

// Recompute computes the weighted total & letter of the student in the course and upserts them.
// Nothing is written on failure: a previously stored final grade is left untouched.
func (agg *Aggregator) Recompute(ctx context.Context, studentID, courseID string) (FinalGrade, error) {
	unlock := agg.locks.Lock(studentID + ":" + courseID)
	defer unlock()

	fg, prev, err := agg.recompute(ctx, studentID, courseID)
	if errors.Cause(err) == ErrPersistenceConflict {
		agg.logger.Warn(fmt.Sprintf("final grade %s/%s: retrying after conflict", studentID, courseID), err)
		fg, prev, err = agg.recompute(ctx, studentID, courseID)
	}
	if err != nil {
		return FinalGrade{}, err
	}

	agg.notify(ctx, Change{Previous: prev, Current: fg})
	return fg, nil
}

func (agg *Aggregator) recompute(ctx context.Context, studentID, courseID string) (FinalGrade, *FinalGrade, error) {
	var (
		fg   FinalGrade
		prev *FinalGrade
	)
	err := agg.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		usr, err := agg.usrRepo.GetUser(ctx, user.GetFilter{ID: studentID}, exec)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return ErrStudentNotFound
			}
			return errors.Wrap(err, "finding student")
		}
		if _, err = agg.crsRepo.GetCourse(ctx, course.GetFilter{ID: courseID}, exec); err != nil {
			if errors.Cause(err) == course.ErrNotFound {
				return ErrCourseNotFound
			}
			return errors.Wrap(err, "finding course")
		}
		if !usr.CanReceiveGrades() {
			return ErrStudentNotEligible
		}

		// scores are read once the key is locked, so the last writer saw the latest committed scores
		if err = agg.repo.LockFinalGrade(ctx, studentID, courseID, exec); err != nil {
			return errors.Wrap(err, "locking final grade")
		}
		scores, err := agg.repo.QueryScores(ctx, ScoreFilter{StudentID: studentID, CourseID: courseID}, exec)
		if err != nil {
			return errors.Wrap(err, "querying scores")
		}
		if len(scores) == 0 {
			return ErrNoScores
		}

		total := WeightedTotal(scores)
		letter := LetterFor(total)

		if old, err := agg.repo.GetFinalGrade(ctx, studentID, courseID, exec); err == nil {
			prev = &old
		} else if errors.Cause(err) != ErrFinalGradeNotFound {
			return errors.Wrap(err, "finding final grade")
		}

		fg, err = agg.repo.UpsertFinalGrade(ctx, FinalGrade{
			StudentID:  studentID,
			CourseID:   courseID,
			Total:      decimal.NewNullDecimal(total.Round(TotalPlaces)),
			Letter:     nullLetter(letter),
			ComputedAt: core.Now(),
		}, exec)
		if err != nil {
			if errors.Cause(err) == ErrPersistenceConflict {
				return ErrPersistenceConflict
			}
			return errors.Wrap(err, "upserting final grade")
		}
		return nil
	})
	return fg, prev, err
}

func nullLetter(l Letter) null.String {
	return null.StringFrom(string(l))
}

func (agg *Aggregator) notify(ctx context.Context, change Change) {
	agg.mu.RLock()
	defer agg.mu.RUnlock()
	for _, l := range agg.listeners {
		l.FinalGradeChanged(ctx, change)
	}
}

// keyedMutex hands out one mutex per key; a key's mutex is freed once nobody holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock locks key and returns its unlock func.
func (km *keyedMutex) Lock(key string) func() {
	km.mu.Lock()
	m, ok := km.locks[key]
	if !ok {
		m = new(refMutex)
		km.locks[key] = m
	}
	m.refs++
	km.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		km.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}
