package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/user"
	testutil "github.com/kampuslab/kampus/tests"
)

func Test_courseApi_courses(t *testing.T) {
	db.Reset()
	student := testutil.CreateUser(t, usrRepo, "Siti Aminah", "siti@kampus.ac.id", "", user.RoleStudent, true)
	lecturer := testutil.CreateUser(t, usrRepo, "Budi Santoso", "budi@kampus.ac.id", "", user.RoleLecturer, true)
	bus := testutil.CreateCourse(t, crsRepo, "BUS101", "Introduction to Business", lecturer.ID)
	acc := testutil.CreateCourse(t, crsRepo, "ACC201", "Financial Accounting", "")

	studentToken := getToken(t, student)
	lecturerToken := getToken(t, lecturer)
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/api/courses", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "list", method: http.MethodGet, path: "/api/courses", token: studentToken, wantData: marchallList(t, acc, bus)},
		{name: "search", method: http.MethodGet, path: "/api/courses?search=busi", token: studentToken, wantData: marchallList(t, bus)},
		{name: "by lecturer", method: http.MethodGet, path: "/api/courses?lecturer_id=" + lecturer.ID, token: studentToken, wantData: marchallList(t, bus)},
		{name: "ordering", method: http.MethodGet, path: "/api/courses?ordering=-code", token: studentToken, wantData: marchallList(t, bus, acc)},
		{name: "retrieve", method: http.MethodGet, path: "/api/courses/" + bus.ID, token: studentToken, wantData: marchallObj(t, bus)},
		{
			name: "retrieve (unknown)", method: http.MethodGet, path: "/api/courses/lol", token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "course not found"}),
		},
		{
			name: "create requires staff", method: http.MethodPost, path: "/api/courses", token: studentToken,
			body: []byte(`{"code": "MKT101", "name": "Marketing"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "create: duplicate code", method: http.MethodPost, path: "/api/courses", token: lecturerToken,
			body: []byte(`{"code": "BUS101", "name": "Business again"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"code": "a course with this code already exists"}),
		},
		{
			name: "create: invalid code", method: http.MethodPost, path: "/api/courses", token: lecturerToken,
			body: []byte(`{"code": "mkt 101", "name": "Marketing"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"code": "only uppercase letters, digits and dashes are allowed"}),
		},
		{
			name: "create: student as lecturer", method: http.MethodPost, path: "/api/courses", token: lecturerToken,
			body: marchallObj(t, map[string]string{"code": "MKT101", "name": "Marketing", "lecturer_id": student.ID}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"lecturer_id": "user is not a lecturer"}),
		},
		{
			name: "update requires staff", method: http.MethodPut, path: "/api/courses/" + bus.ID, token: studentToken,
			body: []byte(`{"name": "Business"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{name: "delete requires staff", method: http.MethodDelete, path: "/api/courses/" + bus.ID, token: studentToken, wantCode: http.StatusForbidden, wantData: forbidden},
	}
	runTests(t, tests)

	t.Run("create", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/courses", lecturerToken,
			marchallObj(t, map[string]interface{}{"code": "MKT101", "name": " Marketing ", "credits": 3, "major": "BUS", "lecturer_id": lecturer.ID}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var crs course.Course
		unmarshal(t, rec, &crs)
		assert.NotEmpty(t, crs.ID)
		assert.Equal(t, "Marketing", crs.Name)
		assert.Equal(t, 3, crs.Credits)
		assert.Equal(t, lecturer.ID, crs.LecturerID)
	})

	t.Run("update", func(t *testing.T) {
		rec := serve(http.MethodPut, "/api/courses/"+acc.ID, lecturerToken, []byte(`{"name": "Accounting I", "credits": 4}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var crs course.Course
		unmarshal(t, rec, &crs)
		assert.Equal(t, "ACC201", crs.Code)
		assert.Equal(t, "Accounting I", crs.Name)
		assert.Equal(t, 4, crs.Credits)
	})

	t.Run("delete", func(t *testing.T) {
		rec := serve(http.MethodDelete, "/api/courses/"+acc.ID, lecturerToken)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = serve(http.MethodGet, "/api/courses/"+acc.ID, lecturerToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_courseApi_components(t *testing.T) {
	db.Reset()
	student := testutil.CreateUser(t, usrRepo, "Siti Aminah", "siti@kampus.ac.id", "", user.RoleStudent, true)
	lecturer := testutil.CreateUser(t, usrRepo, "Budi Santoso", "budi@kampus.ac.id", "", user.RoleLecturer, true)
	bus := testutil.CreateCourse(t, crsRepo, "BUS101", "Introduction to Business", lecturer.ID)
	acc := testutil.CreateCourse(t, crsRepo, "ACC201", "Financial Accounting", "")
	uts := testutil.CreateComponent(t, crsRepo, bus.ID, "UTS", "30")
	other := testutil.CreateComponent(t, crsRepo, acc.ID, "UTS", "50")

	studentToken := getToken(t, student)
	lecturerToken := getToken(t, lecturer)
	path := "/api/courses/" + bus.ID + "/components"

	tests := []httpTest{
		{name: "list", method: http.MethodGet, path: path, token: studentToken, wantData: marchallList(t, uts)},
		{
			name: "create requires staff", method: http.MethodPost, path: path, token: studentToken,
			body: []byte(`{"name": "UAS", "weight": 40}`), wantCode: http.StatusForbidden,
		},
		{
			name: "create: weight required", method: http.MethodPost, path: path, token: lecturerToken,
			body: []byte(`{"name": "UAS"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"weight": "this field is required"}),
		},
		{
			name: "create: weight above 100", method: http.MethodPost, path: path, token: lecturerToken,
			body: []byte(`{"name": "UAS", "weight": 100.5}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "create: duplicate name", method: http.MethodPost, path: path, token: lecturerToken,
			body: []byte(`{"name": "UTS", "weight": 10}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "a component with this name already exists in the course"}),
		},
		{
			name: "update: component of another course", method: http.MethodPut, path: path + "/" + other.ID, token: lecturerToken,
			body: []byte(`{"weight": 10}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "grade component not found"}),
		},
		{
			name: "delete: component of another course", method: http.MethodDelete, path: path + "/" + other.ID, token: lecturerToken,
			wantCode: http.StatusNotFound,
		},
	}
	runTests(t, tests)

	t.Run("create", func(t *testing.T) {
		rec := serve(http.MethodPost, path, lecturerToken, []byte(`{"name": "UAS", "weight": "39.999"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var cmp course.Component
		unmarshal(t, rec, &cmp)
		assert.Equal(t, bus.ID, cmp.CourseID)
		assert.True(t, cmp.Weight.Equal(decimal.NewFromInt(40)), cmp.Weight.String())
	})

	t.Run("update", func(t *testing.T) {
		rec := serve(http.MethodPut, path+"/"+uts.ID, lecturerToken, []byte(`{"name": "Midterm", "weight": 35}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var cmp course.Component
		unmarshal(t, rec, &cmp)
		assert.Equal(t, "Midterm", cmp.Name)
		assert.True(t, cmp.Weight.Equal(decimal.NewFromInt(35)))
	})

	t.Run("list is ordered by name", func(t *testing.T) {
		rec := serve(http.MethodGet, path, studentToken)
		require.Equal(t, http.StatusOK, rec.Code)

		var cmps []course.Component
		unmarshal(t, rec, &cmps)
		require.Len(t, cmps, 2)
		assert.Equal(t, "Midterm", cmps[0].Name)
		assert.Equal(t, "UAS", cmps[1].Name)
	})

	t.Run("delete", func(t *testing.T) {
		rec := serve(http.MethodDelete, path+"/"+uts.ID, lecturerToken)
		require.Equal(t, http.StatusNoContent, rec.Code)

		cmps, err := crsRepo.QueryComponents(context.Background(), bus.ID)
		require.NoError(t, err)
		require.Len(t, cmps, 1)
		assert.Equal(t, "UAS", cmps[0].Name)
	})
}
