package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/grade"
)

const (
	scoreTable      = "score_entry"
	finalGradeTable = "final_grade"
)

var (
	scoreColumns = []string{
		"s.id", "s.student_id", "s.component_id", "c.course_id", "c.name AS component_name", "c.weight", "s.score", "s.recorded_at",
	}
	finalGradeColumns = []string{"id", "student_id", "course_id", "total", "letter", "computed_at"}
)

// scoresQuery selects the scores matching filter along with their component.
func scoresQuery(filter grade.ScoreFilter) sq.SelectBuilder {
	q := psql.Select(scoreColumns...).From(scoreTable + " s").Join(componentTable + " c ON c.id = s.component_id")
	if filter.StudentID != "" {
		q = q.Where(sq.Eq{"s.student_id": filter.StudentID})
	}
	if filter.CourseID != "" {
		q = q.Where(sq.Eq{"c.course_id": filter.CourseID})
	}
	if filter.ComponentID != "" {
		q = q.Where(sq.Eq{"s.component_id": filter.ComponentID})
	}
	return q.OrderBy("c.name", "s.student_id")
}

func finalGradesQuery(filter grade.FinalGradeFilter) sq.SelectBuilder {
	cond := sq.Eq{}
	if filter.StudentID != "" {
		cond["student_id"] = filter.StudentID
	}
	if filter.CourseID != "" {
		cond["course_id"] = filter.CourseID
	}
	return psql.Select(finalGradeColumns...).From(finalGradeTable).Where(cond).OrderBy("course_id", "student_id")
}

type scoreRow struct {
	ID            string          `db:"id"`
	StudentID     string          `db:"student_id"`
	ComponentID   string          `db:"component_id"`
	CourseID      string          `db:"course_id"`
	ComponentName string          `db:"component_name"`
	Weight        decimal.Decimal `db:"weight"`
	Score         decimal.Decimal `db:"score"`
	RecordedAt    time.Time       `db:"recorded_at"`
}

func (r scoreRow) score() grade.ScoreEntry {
	return grade.ScoreEntry{
		ID:            r.ID,
		StudentID:     r.StudentID,
		ComponentID:   r.ComponentID,
		CourseID:      r.CourseID,
		ComponentName: r.ComponentName,
		Weight:        r.Weight,
		Score:         r.Score,
		RecordedAt:    r.RecordedAt.UTC(),
	}
}

type finalGradeRow struct {
	ID         string              `db:"id"`
	StudentID  string              `db:"student_id"`
	CourseID   string              `db:"course_id"`
	Total      decimal.NullDecimal `db:"total"`
	Letter     null.String         `db:"letter"`
	ComputedAt time.Time           `db:"computed_at"`
}

func (r finalGradeRow) finalGrade() grade.FinalGrade {
	return grade.FinalGrade{
		ID:         r.ID,
		StudentID:  r.StudentID,
		CourseID:   r.CourseID,
		Total:      r.Total,
		Letter:     r.Letter,
		ComputedAt: r.ComputedAt.UTC(),
	}
}

type gradeRepository struct {
	repository
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(exec core.DBExecutor) grade.Repository {
	return &gradeRepository{repository{exec: exec}}
}

func validUUIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

func (repo gradeRepository) UpsertScore(ctx context.Context, se grade.ScoreEntry, exec ...core.DBExecutor) (grade.ScoreEntry, error) {
	q := psql.Insert(scoreTable).
		Columns("id", "student_id", "component_id", "score", "recorded_at").
		Values(uuid.New().String(), se.StudentID, se.ComponentID, se.Score, se.RecordedAt.UTC()).
		Suffix(`ON CONFLICT (student_id, component_id) DO UPDATE SET score = EXCLUDED.score, recorded_at = EXCLUDED.recorded_at
		RETURNING id`)
	if err := repo.scanRow(ctx, exec, q, &se.ID); err != nil {
		if pqErrorCode(err) == foreignKeyViolation {
			return grade.ScoreEntry{}, course.ErrComponentNotFound
		}
		return grade.ScoreEntry{}, errors.Wrap(err, "upserting score")
	}
	return se, nil
}

func (repo gradeRepository) GetScore(ctx context.Context, id string, exec ...core.DBExecutor) (grade.ScoreEntry, error) {
	if !validUUIDs(id) {
		return grade.ScoreEntry{}, grade.ErrScoreNotFound
	}
	q := psql.Select(scoreColumns...).From(scoreTable + " s").
		Join(componentTable + " c ON c.id = s.component_id").
		Where(sq.Eq{"s.id": id})

	var rows []scoreRow
	if err := repo.selectRows(ctx, exec, &rows, q); err != nil {
		return grade.ScoreEntry{}, errors.Wrap(err, "finding score")
	}
	if len(rows) == 0 {
		return grade.ScoreEntry{}, grade.ErrScoreNotFound
	}
	return rows[0].score(), nil
}

func (repo gradeRepository) QueryScores(ctx context.Context, filter grade.ScoreFilter, exec ...core.DBExecutor) ([]grade.ScoreEntry, error) {
	if !validUUIDs(nonEmpty(filter.StudentID, filter.CourseID, filter.ComponentID)...) {
		return []grade.ScoreEntry{}, nil
	}

	var rows []scoreRow
	if err := repo.selectRows(ctx, exec, &rows, scoresQuery(filter)); err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}

	scores := make([]grade.ScoreEntry, 0, len(rows))
	for _, r := range rows {
		scores = append(scores, r.score())
	}
	return scores, nil
}

func (repo gradeRepository) DeleteScore(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validUUIDs(id) {
		return grade.ErrScoreNotFound
	}
	res, err := repo.execute(ctx, exec, psql.Delete(scoreTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting score")
	}
	return affected(res, grade.ErrScoreNotFound)
}

// LockFinalGrade takes a transaction-level advisory lock on the (student, course) pair.
// exec must be a transaction: the lock is released on commit or rollback.
func (repo gradeRepository) LockFinalGrade(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) error {
	q := sq.Expr("SELECT pg_advisory_xact_lock(hashtext($1))", "final_grade:"+studentID+":"+courseID)
	_, err := repo.execute(ctx, exec, q)
	return errors.Wrap(err, "locking final grade")
}

func (repo gradeRepository) UpsertFinalGrade(ctx context.Context, fg grade.FinalGrade, exec ...core.DBExecutor) (grade.FinalGrade, error) {
	q := psql.Insert(finalGradeTable).
		Columns(finalGradeColumns...).
		Values(uuid.New().String(), fg.StudentID, fg.CourseID, fg.Total, fg.Letter, fg.ComputedAt.UTC()).
		Suffix(`ON CONFLICT (student_id, course_id) DO UPDATE
		SET total = EXCLUDED.total, letter = EXCLUDED.letter, computed_at = EXCLUDED.computed_at
		RETURNING id`)
	if err := repo.scanRow(ctx, exec, q, &fg.ID); err != nil {
		switch pqErrorCode(err) {
		case serializationFailure, deadlockDetected, foreignKeyViolation:
			return grade.FinalGrade{}, errors.Wrap(grade.ErrPersistenceConflict, err.Error())
		}
		return grade.FinalGrade{}, errors.Wrap(err, "upserting final grade")
	}
	return fg, nil
}

func (repo gradeRepository) GetFinalGrade(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (grade.FinalGrade, error) {
	if !validUUIDs(studentID, courseID) {
		return grade.FinalGrade{}, grade.ErrFinalGradeNotFound
	}
	var row finalGradeRow
	q := psql.Select(finalGradeColumns...).From(finalGradeTable).Where(sq.Eq{"student_id": studentID, "course_id": courseID})
	err := repo.scanRow(ctx, exec, q, &row.ID, &row.StudentID, &row.CourseID, &row.Total, &row.Letter, &row.ComputedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return grade.FinalGrade{}, grade.ErrFinalGradeNotFound
		}
		return grade.FinalGrade{}, errors.Wrap(err, "finding final grade")
	}
	return row.finalGrade(), nil
}

func (repo gradeRepository) QueryFinalGrades(ctx context.Context, filter grade.FinalGradeFilter, exec ...core.DBExecutor) ([]grade.FinalGrade, error) {
	if !validUUIDs(nonEmpty(filter.StudentID, filter.CourseID)...) {
		return []grade.FinalGrade{}, nil
	}

	var rows []finalGradeRow
	if err := repo.selectRows(ctx, exec, &rows, finalGradesQuery(filter)); err != nil {
		return nil, errors.Wrap(err, "querying final grades")
	}

	fgs := make([]grade.FinalGrade, 0, len(rows))
	for _, r := range rows {
		fgs = append(fgs, r.finalGrade())
	}
	return fgs, nil
}

func nonEmpty(values ...string) []string {
	res := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			res = append(res, v)
		}
	}
	return res
}
