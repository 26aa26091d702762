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
)

const (
	courseTable    = "course"
	componentTable = "grade_component"
)

var (
	courseColumns    = []string{"id", "code", "name", "credits", "major", "lecturer_id", "created_at", "updated_at"}
	componentColumns = []string{"id", "course_id", "name", "weight"}
)

type courseRow struct {
	ID         string      `db:"id"`
	Code       string      `db:"code"`
	Name       string      `db:"name"`
	Credits    int         `db:"credits"`
	Major      string      `db:"major"`
	LecturerID null.String `db:"lecturer_id"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

func (r courseRow) course() course.Course {
	return course.Course{
		ID:         r.ID,
		Code:       r.Code,
		Name:       r.Name,
		Credits:    r.Credits,
		Major:      r.Major,
		LecturerID: r.LecturerID.String,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type componentRow struct {
	ID       string          `db:"id"`
	CourseID string          `db:"course_id"`
	Name     string          `db:"name"`
	Weight   decimal.Decimal `db:"weight"`
}

func (r componentRow) component() course.Component {
	return course.Component{ID: r.ID, CourseID: r.CourseID, Name: r.Name, Weight: r.Weight}
}

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) course.Repository {
	return &courseRepository{repository{exec: exec}}
}

// trapErr maps psql "no rows" & unique violations to course errors.
func (repo courseRepository) trapErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	switch uniqueConstraint(err) {
	case "course_code_key":
		return course.ErrCodeExists
	case "grade_component_course_name_key":
		return course.ErrComponentExists
	}
	return errors.Wrap(err, msg)
}

func (repo courseRepository) CheckCodeUniqueness(ctx context.Context, code string, excludedCourses []course.Course, exec ...core.DBExecutor) error {
	q := psql.Select().From(courseTable).Where(sq.Eq{"code": code})
	if len(excludedCourses) > 0 {
		ids := make([]string, 0, len(excludedCourses))
		for _, c := range excludedCourses {
			ids = append(ids, c.ID)
		}
		q = q.Where(sq.NotEq{"id": ids})
	}

	found, err := repo.exists(ctx, exec, q)
	if err != nil {
		return errors.Wrap(err, "checking course uniqueness")
	}
	if found {
		return course.ErrCodeExists
	}
	return nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	crs.ID = uuid.New().String()
	q := psql.Insert(courseTable).Columns(courseColumns...).Values(
		crs.ID, crs.Code, crs.Name, crs.Credits, crs.Major, null.NewString(crs.LecturerID, crs.LecturerID != ""),
		crs.CreatedAt.UTC(), crs.UpdatedAt.UTC(),
	)
	if _, err := repo.execute(ctx, exec, q); err != nil {
		return course.Course{}, repo.trapErr(err, course.ErrNotFound, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, filter course.GetFilter, exec ...core.DBExecutor) (course.Course, error) {
	cond := sq.Eq{}
	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return course.Course{}, course.ErrNotFound
		}
		cond["id"] = filter.ID
	}
	if filter.Code != "" {
		cond["code"] = filter.Code
	}
	if len(cond) == 0 {
		return course.Course{}, course.ErrNotFound
	}

	var rows []courseRow
	if err := repo.selectRows(ctx, exec, &rows, psql.Select(courseColumns...).From(courseTable).Where(cond).Limit(1)); err != nil {
		return course.Course{}, repo.trapErr(err, course.ErrNotFound, "finding course")
	}
	if len(rows) == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return rows[0].course(), nil
}

var courseOrderingFields = map[string]string{
	"code":       "code",
	"name":       "name",
	"credits":    "credits",
	"major":      "major",
	"created_at": "created_at",
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	q := psql.Select(courseColumns...).From(courseTable)
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q = q.Where(sq.Or{sq.ILike{"code": val}, sq.ILike{"name": val}})
		}
		if filter.Major != "" {
			q = q.Where(sq.Eq{"major": filter.Major})
		}
		if filter.LecturerID != "" {
			if _, err := uuid.Parse(filter.LecturerID); err != nil {
				return []course.Course{}, nil
			}
			q = q.Where(sq.Eq{"lecturer_id": filter.LecturerID})
		}
	}
	q = q.OrderBy(orderBy(ordering, courseOrderingFields, "code ASC")...)

	var rows []courseRow
	if err := repo.selectRows(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}

	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.course())
	}
	return courses, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	q := psql.Update(courseTable).SetMap(map[string]interface{}{
		"code":        crs.Code,
		"name":        crs.Name,
		"credits":     crs.Credits,
		"major":       crs.Major,
		"lecturer_id": null.NewString(crs.LecturerID, crs.LecturerID != ""),
		"updated_at":  crs.UpdatedAt.UTC(),
	}).Where(sq.Eq{"id": crs.ID})

	res, err := repo.execute(ctx, exec, q)
	if err != nil {
		return course.Course{}, repo.trapErr(err, course.ErrNotFound, "updating course")
	}
	if err = affected(res, course.ErrNotFound); err != nil {
		return course.Course{}, err
	}
	return crs, nil
}

// DeleteCourse deletes the course; its components, scores & final grades are deleted in cascade.
func (repo courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return course.ErrNotFound
	}
	res, err := repo.execute(ctx, exec, psql.Delete(courseTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return affected(res, course.ErrNotFound)
}

func (repo courseRepository) CreateComponent(ctx context.Context, cmp course.Component, exec ...core.DBExecutor) (course.Component, error) {
	cmp.ID = uuid.New().String()
	q := psql.Insert(componentTable).Columns(componentColumns...).Values(cmp.ID, cmp.CourseID, cmp.Name, cmp.Weight)
	if _, err := repo.execute(ctx, exec, q); err != nil {
		return course.Component{}, repo.trapErr(err, course.ErrComponentNotFound, "inserting component")
	}
	return cmp, nil
}

func (repo courseRepository) GetComponent(ctx context.Context, id string, exec ...core.DBExecutor) (course.Component, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Component{}, course.ErrComponentNotFound
	}
	var rows []componentRow
	if err := repo.selectRows(ctx, exec, &rows, psql.Select(componentColumns...).From(componentTable).Where(sq.Eq{"id": id})); err != nil {
		return course.Component{}, repo.trapErr(err, course.ErrComponentNotFound, "finding component")
	}
	if len(rows) == 0 {
		return course.Component{}, course.ErrComponentNotFound
	}
	return rows[0].component(), nil
}

func (repo courseRepository) QueryComponents(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Component, error) {
	if _, err := uuid.Parse(courseID); err != nil {
		return []course.Component{}, nil
	}
	q := psql.Select(componentColumns...).From(componentTable).Where(sq.Eq{"course_id": courseID}).OrderBy("name")

	var rows []componentRow
	if err := repo.selectRows(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying components")
	}

	cmps := make([]course.Component, 0, len(rows))
	for _, r := range rows {
		cmps = append(cmps, r.component())
	}
	return cmps, nil
}

func (repo courseRepository) UpdateComponent(ctx context.Context, cmp course.Component, exec ...core.DBExecutor) (course.Component, error) {
	q := psql.Update(componentTable).
		Set("name", cmp.Name).
		Set("weight", cmp.Weight).
		Where(sq.Eq{"id": cmp.ID}).
		Suffix("RETURNING course_id")
	if err := repo.scanRow(ctx, exec, q, &cmp.CourseID); err != nil {
		return course.Component{}, repo.trapErr(err, course.ErrComponentNotFound, "updating component")
	}
	return cmp, nil
}

// DeleteComponent deletes the component; its scores are deleted in cascade.
func (repo courseRepository) DeleteComponent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return course.ErrComponentNotFound
	}
	res, err := repo.execute(ctx, exec, psql.Delete(componentTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting component")
	}
	return affected(res, course.ErrComponentNotFound)
}
