package grade_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/grade"
)

func newService(f *fixture) grade.Service {
	return grade.NewService(f.repo, f.usrRepo, f.crsRepo, f.agg, grade.NewSyncTrigger(f.agg, f.logger), f.logger)
}

func scoreOf(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestService_RecordScore(t *testing.T) {
	f := setup(t)
	svc := newService(f)
	ctx := context.Background()

	se, err := svc.RecordScore(ctx, grade.NewScore{StudentID: f.student.ID, ComponentID: f.cmps["UTS"].ID, Score: scoreOf("80")})
	require.NoError(t, err)
	assert.NotEmpty(t, se.ID)
	assert.Equal(t, f.course.ID, se.CourseID)
	assert.Equal(t, "UTS", se.ComponentName)

	// recomputed inline
	fg, err := svc.FinalGrade(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.True(t, fg.Total.Decimal.Equal(decimal.NewFromInt(24)))

	// upsert by (student, component)
	se2, err := svc.RecordScore(ctx, grade.NewScore{StudentID: f.student.ID, ComponentID: f.cmps["UTS"].ID, Score: scoreOf("100")})
	require.NoError(t, err)
	assert.Equal(t, se.ID, se2.ID)
	scores, err := svc.Scores(ctx, grade.ScoreFilter{StudentID: f.student.ID, CourseID: f.course.ID})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.True(t, scores[0].Score.Equal(decimal.NewFromInt(100)))

	fg, err = svc.FinalGrade(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.True(t, fg.Total.Decimal.Equal(decimal.NewFromInt(30)))

	// deleting the last score keeps the final grade
	require.NoError(t, svc.DeleteScore(ctx, se.ID))
	_, err = svc.Score(ctx, se.ID)
	assert.Equal(t, grade.ErrScoreNotFound, errors.Cause(err))
	fg2, err := svc.FinalGrade(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, fg, fg2)
}

func TestService_RecordScore_errors(t *testing.T) {
	f := setup(t)
	svc := newService(f)
	ctx := context.Background()

	otherCourse := f.course
	otherCourse.ID = "c5b1f7a6-3f0e-4a57-9d2b-8e6a1c4d9f01"

	tests := []struct {
		name    string
		ns      grade.NewScore
		wantErr error
	}{
		{
			name:    "unknown student",
			ns:      grade.NewScore{StudentID: "c5b1f7a6-3f0e-4a57-9d2b-8e6a1c4d9f01", ComponentID: f.cmps["UTS"].ID, Score: scoreOf("1")},
			wantErr: grade.ErrStudentNotFound,
		},
		{
			name:    "lecturer",
			ns:      grade.NewScore{StudentID: f.lecturer.ID, ComponentID: f.cmps["UTS"].ID, Score: scoreOf("1")},
			wantErr: grade.ErrStudentNotEligible,
		},
		{
			name:    "unknown component",
			ns:      grade.NewScore{StudentID: f.student.ID, ComponentID: "c5b1f7a6-3f0e-4a57-9d2b-8e6a1c4d9f01", Score: scoreOf("1")},
			wantErr: course.ErrComponentNotFound,
		},
		{
			name:    "component of another course",
			ns:      grade.NewScore{StudentID: f.student.ID, ComponentID: f.cmps["UTS"].ID, CourseID: otherCourse.ID, Score: scoreOf("1")},
			wantErr: course.ErrComponentNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordScore(ctx, tt.ns)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}

	scores, err := svc.Scores(ctx, grade.ScoreFilter{})
	require.NoError(t, err)
	assert.Empty(t, scores)
	fgs, err := svc.FinalGrades(ctx, grade.FinalGradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, fgs)
}

func TestService_FinalGrades(t *testing.T) {
	f := setup(t)
	svc := newService(f)
	ctx := context.Background()

	other := f.student
	other.ID = ""
	other.Email = "rina@kampus.ac.id"
	other, err := f.usrRepo.CreateUser(ctx, other)
	require.NoError(t, err)

	for _, id := range []string{f.student.ID, other.ID} {
		_, err = svc.RecordScore(ctx, grade.NewScore{StudentID: id, ComponentID: f.cmps["UAS"].ID, Score: scoreOf("50")})
		require.NoError(t, err)
	}

	fgs, err := svc.FinalGrades(ctx, grade.FinalGradeFilter{CourseID: f.course.ID})
	require.NoError(t, err)
	assert.Len(t, fgs, 2)

	fgs, err = svc.FinalGrades(ctx, grade.FinalGradeFilter{StudentID: other.ID})
	require.NoError(t, err)
	require.Len(t, fgs, 1)
	assert.Equal(t, other.ID, fgs[0].StudentID)

	_, err = svc.FinalGrade(ctx, f.lecturer.ID, f.course.ID)
	assert.Equal(t, grade.ErrFinalGradeNotFound, errors.Cause(err))
}

func TestService_ComponentsChanged(t *testing.T) {
	f := setup(t)
	svc := newService(f)
	crsSvc := course.NewService(f.crsRepo, f.usrRepo, f.db, f.conf)
	crsSvc.Subscribe(svc)
	ctx := context.Background()

	_, err := svc.RecordScore(ctx, grade.NewScore{StudentID: f.student.ID, ComponentID: f.cmps["UTS"].ID, Score: scoreOf("100")})
	require.NoError(t, err)
	_, err = svc.RecordScore(ctx, grade.NewScore{StudentID: f.student.ID, ComponentID: f.cmps["UAS"].ID, Score: scoreOf("50")})
	require.NoError(t, err)

	assertStored := func(t *testing.T, total string, letter grade.Letter) {
		t.Helper()
		fg, err := svc.FinalGrade(ctx, f.student.ID, f.course.ID)
		require.NoError(t, err)
		assertDecimal(t, total, fg.Total.Decimal)
		assert.Equal(t, string(letter), fg.Letter.String)
	}
	assertStored(t, "50", grade.LetterD)

	t.Run("weight update", func(t *testing.T) {
		_, err := crsSvc.UpdateComponent(ctx, f.course.ID, f.cmps["UTS"].ID, course.UpdateComponent{Name: "UTS", Weight: scoreOf("60")})
		require.NoError(t, err)
		assertStored(t, "80", grade.LetterA)

		fg, err := svc.Recompute(ctx, f.student.ID, f.course.ID)
		require.NoError(t, err)
		assertDecimal(t, "80", fg.Total.Decimal)
	})

	t.Run("rename only", func(t *testing.T) {
		_, err := crsSvc.UpdateComponent(ctx, f.course.ID, f.cmps["UTS"].ID, course.UpdateComponent{Name: "Midterm"})
		require.NoError(t, err)
		assertStored(t, "80", grade.LetterA)
	})

	t.Run("component deletion", func(t *testing.T) {
		require.NoError(t, crsSvc.DeleteComponent(ctx, f.course.ID, f.cmps["UAS"].ID))
		assertStored(t, "60", grade.LetterC)
	})

	t.Run("deleting the last scored component keeps the final grade", func(t *testing.T) {
		require.NoError(t, crsSvc.DeleteComponent(ctx, f.course.ID, f.cmps["UTS"].ID))
		scores, err := svc.Scores(ctx, grade.ScoreFilter{StudentID: f.student.ID})
		require.NoError(t, err)
		assert.Empty(t, scores)
		assertStored(t, "60", grade.LetterC)
	})
}
