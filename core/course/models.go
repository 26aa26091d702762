package course

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/kampuslab/kampus/core"
)

// WeightPlaces is the number of decimal places kept on component weights.
const WeightPlaces = 2

var maxTotalWeight = decimal.NewFromInt(100)

type Course struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Credits    int       `json:"credits"`
	Major      string    `json:"major"`
	LecturerID string    `json:"lecturer_id"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

// Component is a weighted part of a course's assessment (e.g. "Midterm", 30%).
type Component struct {
	ID       string          `json:"id"`
	CourseID string          `json:"course_id"`
	Name     string          `json:"name"`
	Weight   decimal.Decimal `json:"weight"` // percentage, 0..100
}

type NewCourse struct {
	Code       string `json:"code,omitempty" validate:"required,max=32,coursecode"`
	Name       string `json:"name,omitempty" validate:"required,max=255"`
	Credits    int    `json:"credits,omitempty" validate:"gte=0,lte=24"`
	Major      string `json:"major,omitempty" validate:"omitempty,major"`
	LecturerID string `json:"lecturer_id,omitempty" validate:"omitempty,uuid"`
}

func (nc *NewCourse) Validate(validate *validator.Validate, svc Service) error {
	nc.Code = core.CleanString(nc.Code)
	nc.Name = core.CleanString(nc.Name)
	nc.Major = core.CleanString(nc.Major)
	nc.LecturerID = core.CleanString(nc.LecturerID)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	if nc.LecturerID != "" {
		if err := svc.CheckLecturer(nc.LecturerID); err != nil {
			return err
		}
	}
	return svc.CheckUniqueness(nc.Code)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Code       string  `json:"code,omitempty" validate:"omitempty,max=32,coursecode"`
	Name       string  `json:"name,omitempty" validate:"omitempty,max=255"`
	Credits    *int    `json:"credits,omitempty" validate:"omitempty,gte=0,lte=24"`
	Major      *string `json:"major,omitempty" validate:"omitempty,major"`
	LecturerID *string `json:"lecturer_id,omitempty" validate:"omitempty,uuid"`
}

func (uc *UpdateCourse) Validate(orig Course, validate *validator.Validate, svc Service) error {
	if code := core.CleanString(uc.Code); code != "" {
		uc.Code = code
	} else {
		uc.Code = orig.Code
	}
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if uc.Major != nil {
		major := core.CleanString(*uc.Major)
		uc.Major = &major
	}
	if uc.LecturerID != nil {
		lid := core.CleanString(*uc.LecturerID)
		uc.LecturerID = &lid
	}

	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.LecturerID != nil && *uc.LecturerID != "" && *uc.LecturerID != orig.LecturerID {
		if err := svc.CheckLecturer(*uc.LecturerID); err != nil {
			return err
		}
	}
	return svc.CheckUniqueness(uc.Code, orig)
}

type NewComponent struct {
	Name   string           `json:"name,omitempty" validate:"required,max=255"`
	Weight *decimal.Decimal `json:"weight,omitempty" validate:"omitempty,gte=0,lte=100"`
}

func (nc *NewComponent) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	if nc.Weight == nil {
		return core.NewFieldValidationError("weight", core.RequiredText)
	}
	w := nc.Weight.Round(WeightPlaces)
	nc.Weight = &w
	return nil
}

type UpdateComponent struct {
	Name   string           `json:"name,omitempty" validate:"omitempty,max=255"`
	Weight *decimal.Decimal `json:"weight,omitempty" validate:"omitempty,gte=0,lte=100"`
}

func (uc *UpdateComponent) Validate(orig Component, validate *validator.Validate) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.Weight != nil {
		w := uc.Weight.Round(WeightPlaces)
		uc.Weight = &w
	}
	return nil
}

type QueryFilter struct {
	Search     string
	Major      string
	LecturerID string
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Major = core.CleanString(qf.Major)
	qf.LecturerID = core.CleanString(qf.LecturerID)
}

// GetFilter selects a single Course, by ID or by Code.
type GetFilter struct {
	ID   string
	Code string
}
