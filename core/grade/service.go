package grade

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/user"
)

type (
	Repository interface {
		// UpsertScore creates or replaces the score of a (student, component) pair.
		UpsertScore(ctx context.Context, se ScoreEntry, exec ...core.DBExecutor) (ScoreEntry, error)
		GetScore(ctx context.Context, id string, exec ...core.DBExecutor) (ScoreEntry, error)
		// QueryScores returns the matching scores along with their component's course, name & weight,
		// ordered by component name.
		QueryScores(ctx context.Context, filter ScoreFilter, exec ...core.DBExecutor) ([]ScoreEntry, error)
		DeleteScore(ctx context.Context, id string, exec ...core.DBExecutor) error

		// LockFinalGrade blocks other writers of the (student, course) final grade until the transaction ends.
		LockFinalGrade(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) error
		// UpsertFinalGrade creates or replaces the final grade of a (student, course) pair.
		UpsertFinalGrade(ctx context.Context, fg FinalGrade, exec ...core.DBExecutor) (FinalGrade, error)
		GetFinalGrade(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (FinalGrade, error)
		QueryFinalGrades(ctx context.Context, filter FinalGradeFilter, exec ...core.DBExecutor) ([]FinalGrade, error)
	}

	Service interface {
		// RecordScore stores the score and triggers the recomputation of the final grade.
		RecordScore(ctx context.Context, ns NewScore) (ScoreEntry, error)
		Score(ctx context.Context, id string) (ScoreEntry, error)
		Scores(ctx context.Context, filter ScoreFilter) ([]ScoreEntry, error)
		// DeleteScore deletes the score and triggers the recomputation of the final grade.
		DeleteScore(ctx context.Context, id string) error

		Recompute(ctx context.Context, studentID, courseID string) (FinalGrade, error)
		FinalGrade(ctx context.Context, studentID, courseID string) (FinalGrade, error)
		FinalGrades(ctx context.Context, filter FinalGradeFilter) ([]FinalGrade, error)

		// ComponentsChanged triggers the recomputation of every final grade of the course.
		course.ChangeListener
	}

	service struct {
		repo    Repository
		usrRepo user.Repository
		crsRepo course.Repository
		agg     Recomputer
		trigger Trigger
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	usrRepo user.Repository,
	crsRepo course.Repository,
	agg Recomputer,
	trigger Trigger,
	logger core.Logger,
) Service {
	return &service{
		repo:    repo,
		usrRepo: usrRepo,
		crsRepo: crsRepo,
		agg:     agg,
		trigger: trigger,
		logger:  logger,
	}
}

func (svc *service) RecordScore(ctx context.Context, ns NewScore) (ScoreEntry, error) {
	usr, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: ns.StudentID})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return ScoreEntry{}, ErrStudentNotFound
		}
		return ScoreEntry{}, errors.Wrap(err, "finding student")
	}
	if !usr.CanReceiveGrades() {
		return ScoreEntry{}, ErrStudentNotEligible
	}

	cmp, err := svc.crsRepo.GetComponent(ctx, ns.ComponentID)
	if err != nil {
		return ScoreEntry{}, err
	}
	if ns.CourseID != "" && cmp.CourseID != ns.CourseID {
		return ScoreEntry{}, course.ErrComponentNotFound
	}

	se, err := svc.repo.UpsertScore(ctx, ScoreEntry{
		StudentID:     usr.ID,
		ComponentID:   cmp.ID,
		CourseID:      cmp.CourseID,
		ComponentName: cmp.Name,
		Weight:        cmp.Weight,
		Score:         *ns.Score,
		RecordedAt:    core.Now(),
	})
	if err != nil {
		return ScoreEntry{}, errors.Wrap(err, "upserting score")
	}

	svc.trigger.ScoreChanged(ctx, se.StudentID, se.CourseID)
	return se, nil
}

func (svc *service) Score(ctx context.Context, id string) (ScoreEntry, error) {
	return svc.repo.GetScore(ctx, id)
}

func (svc *service) Scores(ctx context.Context, filter ScoreFilter) ([]ScoreEntry, error) {
	return svc.repo.QueryScores(ctx, filter)
}

func (svc *service) DeleteScore(ctx context.Context, id string) error {
	se, err := svc.repo.GetScore(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteScore(ctx, id); err != nil {
		return errors.Wrap(err, "deleting score")
	}
	svc.trigger.ScoreChanged(ctx, se.StudentID, se.CourseID)
	return nil
}

func (svc *service) Recompute(ctx context.Context, studentID, courseID string) (FinalGrade, error) {
	return svc.agg.Recompute(ctx, studentID, courseID)
}

// FinalGrade reads the stored final grade, without recomputing it.
func (svc *service) FinalGrade(ctx context.Context, studentID, courseID string) (FinalGrade, error) {
	return svc.repo.GetFinalGrade(ctx, studentID, courseID)
}

// FinalGrades reads the stored final grades, without recomputing them.
func (svc *service) FinalGrades(ctx context.Context, filter FinalGradeFilter) ([]FinalGrade, error) {
	return svc.repo.QueryFinalGrades(ctx, filter)
}

func (svc *service) ComponentsChanged(ctx context.Context, courseID string) {
	studentIDs, err := svc.gradedStudents(ctx, courseID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("listing graded students of course %s: %v", courseID, err), err)
		return
	}
	for _, id := range studentIDs {
		svc.trigger.ScoreChanged(ctx, id, courseID)
	}
}

// gradedStudents returns the students holding a score or a stored final grade in the course.
func (svc *service) gradedStudents(ctx context.Context, courseID string) ([]string, error) {
	scores, err := svc.repo.QueryScores(ctx, ScoreFilter{CourseID: courseID})
	if err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	fgs, err := svc.repo.QueryFinalGrades(ctx, FinalGradeFilter{CourseID: courseID})
	if err != nil {
		return nil, errors.Wrap(err, "querying final grades")
	}

	seen := make(map[string]bool)
	ids := make([]string, 0, len(fgs))
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, fg := range fgs {
		add(fg.StudentID)
	}
	for _, se := range scores {
		add(se.StudentID)
	}
	return ids, nil
}
