package grade

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/kampuslab/kampus/core"
)

// TotalPlaces is the number of decimal places a stored total is rounded to.
const TotalPlaces = 2

var hundred = decimal.NewFromInt(100)

// ScoreEntry is one student's raw score on one grade component.
// CourseID, ComponentName and Weight are read from the component.
type ScoreEntry struct {
	ID            string          `json:"id"`
	StudentID     string          `json:"student_id"`
	ComponentID   string          `json:"component_id"`
	CourseID      string          `json:"course_id"`
	ComponentName string          `json:"component_name"`
	Weight        decimal.Decimal `json:"weight"`
	Score         decimal.Decimal `json:"score"`
	RecordedAt    time.Time       `json:"recorded_at"` // UTC
}

// Contribution is the entry's share of the weighted total: score * weight / 100.
func (se ScoreEntry) Contribution() decimal.Decimal {
	return se.Score.Mul(se.Weight).Div(hundred)
}

// WeightedTotal sums the contributions of entries, without rounding.
func WeightedTotal(entries []ScoreEntry) decimal.Decimal {
	total := decimal.Zero
	for _, se := range entries {
		total = total.Add(se.Contribution())
	}
	return total
}

// FinalGrade is the derived weighted total and letter of one (student, course) pair.
// Total and Letter stay null until computed.
type FinalGrade struct {
	ID         string              `json:"id"`
	StudentID  string              `json:"student_id"`
	CourseID   string              `json:"course_id"`
	Total      decimal.NullDecimal `json:"total"`
	Letter     null.String         `json:"letter"`
	ComputedAt time.Time           `json:"computed_at"` // UTC
}

func (fg FinalGrade) IsComputed() bool { return fg.Total.Valid && fg.Letter.Valid }

// NewScore contains information needed to record a score.
type NewScore struct {
	StudentID   string           `json:"student_id,omitempty" validate:"required,uuid"`
	ComponentID string           `json:"component_id,omitempty" validate:"required,uuid"`
	Score       *decimal.Decimal `json:"score,omitempty" validate:"omitempty,gte=0,lte=9999.99"`
	CourseID    string           `json:"-"` // set from the request path, if any
}

func (ns *NewScore) Validate(validate *validator.Validate) error {
	ns.StudentID = core.CleanString(ns.StudentID)
	ns.ComponentID = core.CleanString(ns.ComponentID)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.Score == nil {
		return core.NewFieldValidationError("score", core.RequiredText)
	}
	s := ns.Score.Round(TotalPlaces)
	ns.Score = &s
	return nil
}

type ScoreFilter struct {
	StudentID   string
	CourseID    string
	ComponentID string
}

type FinalGradeFilter struct {
	StudentID string
	CourseID  string
}
