package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/grade"
)

type gradeRepository struct {
	db *DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) UpsertScore(_ context.Context, se grade.ScoreEntry, _ ...core.DBExecutor) (grade.ScoreEntry, error) {
	repo.db.component.RLock()
	defer repo.db.component.RUnlock()
	repo.db.score.Lock()
	defer repo.db.score.Unlock()

	cmp, ok := repo.db.component.table[se.ComponentID]
	if !ok {
		return grade.ScoreEntry{}, course.ErrComponentNotFound
	}
	se.CourseID = cmp.CourseID
	se.ComponentName = cmp.Name
	se.Weight = cmp.Weight

	// ON CONFLICT (student_id, component_id) DO UPDATE
	for _, s := range repo.db.score.table {
		if s.StudentID == se.StudentID && s.ComponentID == se.ComponentID {
			se.ID = s.ID
			*s = se
			return se, nil
		}
	}
	se.ID = uuid.New().String()
	repo.db.score.table[se.ID] = &se
	return se, nil
}

func (repo *gradeRepository) GetScore(_ context.Context, id string, _ ...core.DBExecutor) (grade.ScoreEntry, error) {
	repo.db.score.RLock()
	defer repo.db.score.RUnlock()

	if se, ok := repo.db.score.table[id]; ok {
		return *se, nil
	}
	return grade.ScoreEntry{}, grade.ErrScoreNotFound
}

func (repo *gradeRepository) QueryScores(_ context.Context, filter grade.ScoreFilter, _ ...core.DBExecutor) ([]grade.ScoreEntry, error) {
	repo.db.score.RLock()
	defer repo.db.score.RUnlock()

	scores := make([]grade.ScoreEntry, 0)
	for _, se := range repo.db.score.table {
		if filter.StudentID != "" && se.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && se.CourseID != filter.CourseID {
			continue
		}
		if filter.ComponentID != "" && se.ComponentID != filter.ComponentID {
			continue
		}
		scores = append(scores, *se)
	}
	sort.Slice(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.ComponentName != b.ComponentName {
			return a.ComponentName < b.ComponentName
		}
		return a.StudentID < b.StudentID
	})
	return scores, nil
}

func (repo *gradeRepository) DeleteScore(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.score.Lock()
	defer repo.db.score.Unlock()

	if _, ok := repo.db.score.table[id]; !ok {
		return grade.ErrScoreNotFound
	}
	delete(repo.db.score.table, id)
	return nil
}

// LockFinalGrade is a no-op: writers of a key are already serialized by the aggregator.
func (repo *gradeRepository) LockFinalGrade(context.Context, string, string, ...core.DBExecutor) error {
	return nil
}

func finalGradeKey(studentID, courseID string) string {
	return studentID + ":" + courseID
}

func (repo *gradeRepository) UpsertFinalGrade(_ context.Context, fg grade.FinalGrade, _ ...core.DBExecutor) (grade.FinalGrade, error) {
	repo.db.finalGrade.Lock()
	defer repo.db.finalGrade.Unlock()

	key := finalGradeKey(fg.StudentID, fg.CourseID)
	if old, ok := repo.db.finalGrade.table[key]; ok {
		fg.ID = old.ID
	} else {
		fg.ID = uuid.New().String()
	}
	repo.db.finalGrade.table[key] = &fg
	return fg, nil
}

func (repo *gradeRepository) GetFinalGrade(_ context.Context, studentID, courseID string, _ ...core.DBExecutor) (grade.FinalGrade, error) {
	repo.db.finalGrade.RLock()
	defer repo.db.finalGrade.RUnlock()

	if fg, ok := repo.db.finalGrade.table[finalGradeKey(studentID, courseID)]; ok {
		return *fg, nil
	}
	return grade.FinalGrade{}, grade.ErrFinalGradeNotFound
}

// QueryFinalGrades orders by course, then student.
func (repo *gradeRepository) QueryFinalGrades(_ context.Context, filter grade.FinalGradeFilter, _ ...core.DBExecutor) ([]grade.FinalGrade, error) {
	repo.db.finalGrade.RLock()
	defer repo.db.finalGrade.RUnlock()

	fgs := make([]grade.FinalGrade, 0)
	for _, fg := range repo.db.finalGrade.table {
		if filter.StudentID != "" && fg.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && fg.CourseID != filter.CourseID {
			continue
		}
		fgs = append(fgs, *fg)
	}
	sort.Slice(fgs, func(i, j int) bool {
		a, b := fgs[i], fgs[j]
		if a.CourseID != b.CourseID {
			return a.CourseID < b.CourseID
		}
		return a.StudentID < b.StudentID
	})
	return fgs, nil
}
