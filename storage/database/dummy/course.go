package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CheckCodeUniqueness(_ context.Context, code string, excludedCourses []course.Course, _ ...core.DBExecutor) error {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()

	for _, crs := range repo.db.course.table {
		if strings.EqualFold(crs.Code, code) && !isExcludedCourse(crs.ID, excludedCourses) {
			return course.ErrCodeExists
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.course.Lock()
	defer repo.db.course.Unlock()

	for _, c := range repo.db.course.table {
		if strings.EqualFold(c.Code, crs.Code) {
			return course.Course{}, course.ErrCodeExists
		}
	}
	crs.ID = uuid.New().String()
	repo.db.course.table[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, filter course.GetFilter, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()

	if filter.ID != "" {
		if crs, ok := repo.db.course.table[filter.ID]; ok {
			return *crs, nil
		}
		return course.Course{}, course.ErrNotFound
	}
	if filter.Code != "" {
		for _, crs := range repo.db.course.table {
			if strings.EqualFold(crs.Code, filter.Code) {
				return *crs, nil
			}
		}
	}
	return course.Course{}, course.ErrNotFound
}

var courseOrderingFields = map[string]string{
	"code":       "code",
	"name":       "name",
	"credits":    "credits",
	"major":      "major",
	"created_at": "created_at",
}

// QueryCourses orders by the given orderings, then by code.
func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.course.table))
	for _, crs := range repo.db.course.table {
		if filter != nil {
			search := strings.ToLower(filter.Search)
			if search != "" &&
				!strings.Contains(strings.ToLower(crs.Code), search) &&
				!strings.Contains(strings.ToLower(crs.Name), search) {
				continue
			}
			if filter.Major != "" && crs.Major != filter.Major {
				continue
			}
			if filter.LecturerID != "" && crs.LecturerID != filter.LecturerID {
				continue
			}
		}
		courses = append(courses, *crs)
	}

	ordering = core.FilterOrderings(ordering, courseOrderingFields)
	sort.SliceStable(courses, func(i, j int) bool {
		a, b := courses[i], courses[j]
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "code":
				cmp = strings.Compare(a.Code, b.Code)
			case "name":
				cmp = strings.Compare(a.Name, b.Name)
			case "credits":
				cmp = a.Credits - b.Credits
			case "major":
				cmp = strings.Compare(a.Major, b.Major)
			case "created_at":
				cmp = compareTime(a.CreatedAt, b.CreatedAt)
			}
			if cmp != 0 {
				if ord.Ascending {
					return cmp < 0
				}
				return cmp > 0
			}
		}
		return a.Code < b.Code
	})
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.course.Lock()
	defer repo.db.course.Unlock()

	if _, ok := repo.db.course.table[crs.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	for _, c := range repo.db.course.table {
		if c.ID != crs.ID && strings.EqualFold(c.Code, crs.Code) {
			return course.Course{}, course.ErrCodeExists
		}
	}
	repo.db.course.table[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.course.Lock()
	defer repo.db.course.Unlock()
	repo.db.component.Lock()
	defer repo.db.component.Unlock()
	repo.db.score.Lock()
	defer repo.db.score.Unlock()
	repo.db.finalGrade.Lock()
	defer repo.db.finalGrade.Unlock()

	if _, ok := repo.db.course.table[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.course.table, id)

	for cmpID, cmp := range repo.db.component.table {
		if cmp.CourseID == id {
			delete(repo.db.component.table, cmpID)
		}
	}
	for key, se := range repo.db.score.table {
		if se.CourseID == id {
			delete(repo.db.score.table, key)
		}
	}
	for key, fg := range repo.db.finalGrade.table {
		if fg.CourseID == id {
			delete(repo.db.finalGrade.table, key)
		}
	}
	return nil
}

func (repo *courseRepository) CreateComponent(_ context.Context, cmp course.Component, _ ...core.DBExecutor) (course.Component, error) {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()
	repo.db.component.Lock()
	defer repo.db.component.Unlock()

	if _, ok := repo.db.course.table[cmp.CourseID]; !ok {
		return course.Component{}, course.ErrNotFound
	}
	for _, c := range repo.db.component.table {
		if c.CourseID == cmp.CourseID && c.Name == cmp.Name {
			return course.Component{}, course.ErrComponentExists
		}
	}
	cmp.ID = uuid.New().String()
	repo.db.component.table[cmp.ID] = &cmp
	return cmp, nil
}

func (repo *courseRepository) GetComponent(_ context.Context, id string, _ ...core.DBExecutor) (course.Component, error) {
	repo.db.component.RLock()
	defer repo.db.component.RUnlock()

	if cmp, ok := repo.db.component.table[id]; ok {
		return *cmp, nil
	}
	return course.Component{}, course.ErrComponentNotFound
}

func (repo *courseRepository) QueryComponents(_ context.Context, courseID string, _ ...core.DBExecutor) ([]course.Component, error) {
	repo.db.component.RLock()
	defer repo.db.component.RUnlock()

	cmps := make([]course.Component, 0)
	for _, cmp := range repo.db.component.table {
		if cmp.CourseID == courseID {
			cmps = append(cmps, *cmp)
		}
	}
	sort.Slice(cmps, func(i, j int) bool { return cmps[i].Name < cmps[j].Name })
	return cmps, nil
}

func (repo *courseRepository) UpdateComponent(_ context.Context, cmp course.Component, _ ...core.DBExecutor) (course.Component, error) {
	repo.db.component.Lock()
	defer repo.db.component.Unlock()
	repo.db.score.Lock()
	defer repo.db.score.Unlock()

	orig, ok := repo.db.component.table[cmp.ID]
	if !ok {
		return course.Component{}, course.ErrComponentNotFound
	}
	for _, c := range repo.db.component.table {
		if c.ID != cmp.ID && c.CourseID == orig.CourseID && c.Name == cmp.Name {
			return course.Component{}, course.ErrComponentExists
		}
	}
	cmp.CourseID = orig.CourseID
	repo.db.component.table[cmp.ID] = &cmp

	// scores read their component's name & weight
	for _, se := range repo.db.score.table {
		if se.ComponentID == cmp.ID {
			se.ComponentName = cmp.Name
			se.Weight = cmp.Weight
		}
	}
	return cmp, nil
}

func (repo *courseRepository) DeleteComponent(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.component.Lock()
	defer repo.db.component.Unlock()
	repo.db.score.Lock()
	defer repo.db.score.Unlock()

	if _, ok := repo.db.component.table[id]; !ok {
		return course.ErrComponentNotFound
	}
	delete(repo.db.component.table, id)
	for key, se := range repo.db.score.table {
		if se.ComponentID == id {
			delete(repo.db.score.table, key)
		}
	}
	return nil
}

func isExcludedCourse(id string, excluded []course.Course) bool {
	for _, c := range excluded {
		if c.ID == id {
			return true
		}
	}
	return false
}
