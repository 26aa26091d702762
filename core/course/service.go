package course

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("course not found")
	ErrCodeExists        = errors.New("a course with this code already exists")
	ErrComponentNotFound = errors.New("grade component not found")
	ErrComponentExists   = errors.New("a component with this name already exists in the course")

	errUnknownLecturer = "lecturer not found"
	errNotLecturer     = "user is not a lecturer"
	errWeightExceeded  = "total weight of the course components cannot exceed 100 (currently %s)"
)

type (
	Repository interface {
		CheckCodeUniqueness(ctx context.Context, code string, excludedCourses []Course, exec ...core.DBExecutor) error
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		GetCourse(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Course, error)
		// QueryCourses applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Course.Code or Course.Name.
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		// DeleteCourse deletes the course along with its components, scores and final grades.
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateComponent(ctx context.Context, cmp Component, exec ...core.DBExecutor) (Component, error)
		GetComponent(ctx context.Context, id string, exec ...core.DBExecutor) (Component, error)
		// QueryComponents returns the components of a course, ordered by name.
		QueryComponents(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Component, error)
		UpdateComponent(ctx context.Context, cmp Component, exec ...core.DBExecutor) (Component, error)
		DeleteComponent(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// ChangeListener is told, once committed, about component changes that alter the weighted totals of a course:
	// a weight update or a deletion.
	ChangeListener interface {
		ComponentsChanged(ctx context.Context, courseID string)
	}

	Service interface {
		CheckUniqueness(code string, excludedCourses ...Course) error
		CheckLecturer(id string) error
		Create(ctx context.Context, nc NewCourse) (Course, error)
		Get(ctx context.Context, id string) (Course, error)
		GetByCode(ctx context.Context, code string) (Course, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id string) error

		AddComponent(ctx context.Context, courseID string, nc NewComponent) (Component, error)
		Component(ctx context.Context, courseID, id string) (Component, error)
		Components(ctx context.Context, courseID string) ([]Component, error)
		UpdateComponent(ctx context.Context, courseID, id string, uc UpdateComponent) (Component, error)
		DeleteComponent(ctx context.Context, courseID, id string) error
		TotalWeight(ctx context.Context, courseID string) (decimal.Decimal, error)

		Subscribe(l ChangeListener)
	}

	service struct {
		repo               Repository
		usrRepo            user.Repository
		tx                 core.TxRunner
		enforceWeightTotal bool

		mu        sync.RWMutex
		listeners []ChangeListener
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrRepo user.Repository, tx core.TxRunner, conf *core.Config) Service {
	return &service{
		repo:               repo,
		usrRepo:            usrRepo,
		tx:                 tx,
		enforceWeightTotal: conf.Grading.EnforceWeightTotal,
	}
}

// Subscribe registers l to be notified of weight updates & component deletions.
func (svc *service) Subscribe(l ChangeListener) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.listeners = append(svc.listeners, l)
}

func (svc *service) componentsChanged(ctx context.Context, courseID string) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	for _, l := range svc.listeners {
		l.ComponentsChanged(ctx, courseID)
	}
}

func (svc *service) CheckUniqueness(code string, excludedCourses ...Course) error {
	if err := svc.repo.CheckCodeUniqueness(context.Background(), code, excludedCourses); err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
		}
		return err
	}
	return nil
}

// CheckLecturer checks that the user identified by id exists and is a lecturer.
func (svc *service) CheckLecturer(id string) error {
	usr, err := svc.usrRepo.GetUser(context.Background(), user.GetFilter{ID: id})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewFieldValidationError("lecturer_id", errUnknownLecturer)
		}
		return errors.Wrap(err, "finding lecturer")
	}
	if !usr.IsLecturer() {
		return core.NewFieldValidationError("lecturer_id", errNotLecturer)
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	major := nc.Major
	if major == "" {
		major = user.MajorNone
	}
	now := core.Now()
	return svc.repo.CreateCourse(ctx, Course{
		Code:       nc.Code,
		Name:       nc.Name,
		Credits:    nc.Credits,
		Major:      major,
		LecturerID: nc.LecturerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (svc *service) Get(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, GetFilter{ID: id})
}

func (svc *service) GetByCode(ctx context.Context, code string) (Course, error) {
	return svc.repo.GetCourse(ctx, GetFilter{Code: core.CleanString(code)})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, GetFilter{ID: id})
	if err != nil {
		return Course{}, err
	}
	crs.Code = uc.Code
	crs.Name = uc.Name
	if uc.Credits != nil {
		crs.Credits = *uc.Credits
	}
	if uc.Major != nil {
		crs.Major = *uc.Major
		if crs.Major == "" {
			crs.Major = user.MajorNone
		}
	}
	if uc.LecturerID != nil {
		crs.LecturerID = *uc.LecturerID
	}
	crs.UpdatedAt = core.Now()
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

// checkWeightTotal rejects a change that would push the course's total weight above 100.
// excludedID is the component being replaced, if any.
func (svc *service) checkWeightTotal(ctx context.Context, courseID, excludedID string, weight decimal.Decimal, exec core.DBExecutor) error {
	if !svc.enforceWeightTotal {
		return nil
	}
	cmps, err := svc.repo.QueryComponents(ctx, courseID, exec)
	if err != nil {
		return errors.Wrap(err, "querying components")
	}
	total := weight
	for _, c := range cmps {
		if c.ID != excludedID {
			total = total.Add(c.Weight)
		}
	}
	if total.GreaterThan(maxTotalWeight) {
		return core.NewFieldValidationError("weight", fmt.Sprintf(errWeightExceeded, total.StringFixed(WeightPlaces)))
	}
	return nil
}

func (svc *service) AddComponent(ctx context.Context, courseID string, nc NewComponent) (Component, error) {
	var cmp Component
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetCourse(ctx, GetFilter{ID: courseID}, exec); err != nil {
			return err
		}
		if err := svc.checkWeightTotal(ctx, courseID, "", *nc.Weight, exec); err != nil {
			return err
		}
		var err error
		cmp, err = svc.repo.CreateComponent(ctx, Component{CourseID: courseID, Name: nc.Name, Weight: *nc.Weight}, exec)
		return err
	})
	return cmp, svc.trapComponentExists(err)
}

// Component returns the component identified by id, if it belongs to the course.
func (svc *service) Component(ctx context.Context, courseID, id string) (Component, error) {
	cmp, err := svc.repo.GetComponent(ctx, id)
	if err != nil {
		return Component{}, err
	}
	if cmp.CourseID != courseID {
		return Component{}, ErrComponentNotFound
	}
	return cmp, nil
}

func (svc *service) Components(ctx context.Context, courseID string) ([]Component, error) {
	if _, err := svc.repo.GetCourse(ctx, GetFilter{ID: courseID}); err != nil {
		return nil, err
	}
	return svc.repo.QueryComponents(ctx, courseID)
}

func (svc *service) UpdateComponent(ctx context.Context, courseID, id string, uc UpdateComponent) (Component, error) {
	var (
		cmp           Component
		weightChanged bool
	)
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if cmp, err = svc.repo.GetComponent(ctx, id, exec); err != nil {
			return err
		}
		if cmp.CourseID != courseID {
			return ErrComponentNotFound
		}
		cmp.Name = uc.Name
		if uc.Weight != nil {
			if err = svc.checkWeightTotal(ctx, courseID, cmp.ID, *uc.Weight, exec); err != nil {
				return err
			}
			weightChanged = !cmp.Weight.Equal(*uc.Weight)
			cmp.Weight = *uc.Weight
		}
		cmp, err = svc.repo.UpdateComponent(ctx, cmp, exec)
		return err
	})
	if err != nil {
		return Component{}, svc.trapComponentExists(err)
	}
	if weightChanged {
		svc.componentsChanged(ctx, courseID)
	}
	return cmp, nil
}

func (svc *service) DeleteComponent(ctx context.Context, courseID, id string) error {
	if _, err := svc.Component(ctx, courseID, id); err != nil {
		return err
	}
	// scores of the component go with it
	if err := svc.repo.DeleteComponent(ctx, id); err != nil {
		return err
	}
	svc.componentsChanged(ctx, courseID)
	return nil
}

// TotalWeight sums the weights of the course's components.
func (svc *service) TotalWeight(ctx context.Context, courseID string) (decimal.Decimal, error) {
	cmps, err := svc.Components(ctx, courseID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, c := range cmps {
		total = total.Add(c.Weight)
	}
	return total, nil
}

func (svc *service) trapComponentExists(err error) error {
	if errors.Cause(err) == ErrComponentExists {
		return core.NewValidationError(ErrComponentExists, core.FieldError{Field: "name", Error: ErrComponentExists.Error()})
	}
	return err
}
