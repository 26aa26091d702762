package tests

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/kampuslab/kampus/apps/api/echo"
	"github.com/kampuslab/kampus/core/user"
	testutil "github.com/kampuslab/kampus/tests"
)

const pwd = "Tr0ub4dor&3x"

func Test_userApi_register(t *testing.T) {
	db.Reset()
	testutil.CreateUser(t, usrRepo, "Siti Aminah", "siti@kampus.ac.id", pwd, user.RoleStudent, true)

	newUser := func(name, email, role string) []byte {
		return marchallObj(t, map[string]string{
			"name": name, "email": email, "role": role, "major": "",
			"password": pwd, "password_confirm": pwd,
		})
	}

	t.Run("required fields", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/users/register", "", []byte(`{}`))
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var errs map[string]string
		unmarshal(t, rec, &errs)
		assert.Equal(t, "this field is required", errs["name"])
		assert.Equal(t, "this field is required", errs["email"])
		assert.Equal(t, "this field is required", errs["password_confirm"])
		assert.Contains(t, errs, "password")
	})

	tests := []httpTest{
		{
			name: "admin cannot self-register", body: newUser("Root", "root@kampus.ac.id", "admin"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"role": "this role cannot be picked at registration"}),
		},
		{name: "unknown role", body: newUser("Root", "root@kampus.ac.id", "dean"), wantCode: http.StatusBadRequest},
		{
			name: "email taken", body: newUser("Siti", "SITI@kampus.ac.id", "student"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
		{
			name: "weak password", wantCode: http.StatusBadRequest,
			body: marchallObj(t, map[string]string{
				"name": "Dewi Lestari", "email": "dewi@kampus.ac.id", "password": "lol12345", "password_confirm": "lol12345",
			}),
			wantData: marchallObj(t, map[string]string{
				"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
			}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/api/users/register"
	}
	runTests(t, tests)

	t.Run("student registered", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/users/register", "", newUser(" Dewi Lestari ", "Dewi@Kampus.ac.id", ""))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		unmarshal(t, rec, &usr)
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, "Dewi Lestari", usr.Name)
		assert.Equal(t, "dewi@kampus.ac.id", usr.Email)
		assert.Equal(t, user.RoleStudent, usr.Role)
		assert.True(t, usr.IsActive)
	})

	t.Run("lecturer registered", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/users/register", "", newUser("Budi Santoso", "budi@kampus.ac.id", "lecturer"))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, user.RoleLecturer, usr.Role)
		assert.Equal(t, user.MajorNone, usr.Major)
	})
}

func Test_userApi_create(t *testing.T) {
	db.Reset()
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@kampus.ac.id", pwd, user.RoleAdmin, true)
	lecturer := testutil.CreateUser(t, usrRepo, "Budi Santoso", "budi@kampus.ac.id", pwd, user.RoleLecturer, true)

	body := marchallObj(t, map[string]string{
		"name": "Second Admin", "email": "admin2@kampus.ac.id", "role": "admin",
		"password": pwd, "password_confirm": pwd,
	})

	rec := serve(http.MethodPost, "/api/users", getToken(t, lecturer), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(http.MethodPost, "/api/users", getToken(t, admin), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var usr user.User
	unmarshal(t, rec, &usr)
	assert.Equal(t, user.RoleAdmin, usr.Role)
}

func Test_userApi_login(t *testing.T) {
	db.Reset()
	testutil.CreateUser(t, usrRepo, "Siti Aminah", "siti@kampus.ac.id", pwd, user.RoleStudent, true)
	testutil.CreateUser(t, usrRepo, "N Dog", "ndog@kampus.ac.id", pwd, user.RoleStudent, false)

	login := func(email, password string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Email: email, Password: password})
	}
	failed := marchallObj(t, httpErr{Error: "authentication failed"})

	tests := []httpTest{
		{
			name: "required fields", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{name: "unknown email", body: login("lol@kampus.ac.id", pwd), wantCode: http.StatusBadRequest, wantData: failed},
		{name: "wrong password", body: login("siti@kampus.ac.id", "Wr0ng#pass"), wantCode: http.StatusBadRequest, wantData: failed},
		{
			name: "deactivated", body: login("ndog@kampus.ac.id", pwd),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/api/users/login"
	}
	runTests(t, tests)

	t.Run("logged in", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/users/login", "", login(" SITI@kampus.ac.id", pwd))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		require.NotEmpty(t, resp.Token)

		// the token works & last login is set
		rec = serve(http.MethodGet, "/api/users/me", resp.Token)
		require.Equal(t, http.StatusOK, rec.Code)
		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, "siti@kampus.ac.id", usr.Email)
		assert.False(t, usr.LastLogin.IsZero())
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	db.Reset()
	student := testutil.CreateUser(t, usrRepo, "Siti Aminah", "siti@kampus.ac.id", "", user.RoleStudent, true)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog@kampus.ac.id", "", user.RoleStudent, false)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   student.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Role:         student.Role,
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims, conf)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/api/users/token-refresh"
	}
	runTests(t, tests)

	t.Run("Token refreshed", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/users/token-refresh", getToken(t, student))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("deleted user", func(t *testing.T) {
		ghost := testutil.CreateUser(t, usrRepo, "Ghost", "ghost@kampus.ac.id", "", user.RoleStudent, true)
		token := getToken(t, ghost)
		require.NoError(t, usrRepo.DeleteUsers(context.Background(), []string{ghost.ID}))
		rec := serve(http.MethodPost, "/api/users/token-refresh", token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_userApi_query(t *testing.T) {
	db.Reset()

	path := func(search, ordering string, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/api/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now()
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@kampus.ac.id", "", user.RoleAdmin, true, now.Add(1*time.Hour))
	lecturer := testutil.CreateUser(t, usrRepo, "Budi Santoso", "budi@kampus.ac.id", "", user.RoleLecturer, true, now.Add(2*time.Hour))
	student := testutil.CreateUser(t, usrRepo, "Siti Aminah", "siti@kampus.ac.id", "", user.RoleStudent, true, now.Add(3*time.Hour))
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog@kampus.ac.id", "", user.RoleStudent, false, now.Add(4*time.Hour))

	adminToken := getToken(t, admin)
	empty := marchallList(t)

	tests := []httpTest{
		{name: "Auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Staff required", path: "/api/users", token: getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Lecturer allowed", path: "/api/users", token: getToken(t, lecturer), wantData: marchallList(t, naughty, student, lecturer, admin)},
		{name: "Get all", path: "/api/users", token: adminToken, wantData: marchallList(t, naughty, student, lecturer, admin)},
		// filtering
		{name: "search (unknown)", path: path("lol", "", nil), token: adminToken, wantData: empty},
		{name: "search=SANTO", path: path("SANTO", "", nil), token: adminToken, wantData: marchallList(t, lecturer)},
		{name: "role (unknown)", path: path("", "", nil, "dean"), token: adminToken, wantData: empty},
		{name: "role=student", path: path("", "", nil, "student"), token: adminToken, wantData: marchallList(t, naughty, student)},
		{name: "role=student,admin", path: path("", "", nil, "student", "admin"), token: adminToken, wantData: marchallList(t, naughty, student, admin)},
		{name: "is_active=false", path: path("", "", bPtr(false)), token: adminToken, wantData: marchallList(t, naughty)},
		{name: "is_active (invalid)", path: "/api/users?is_active=lol", token: adminToken, wantData: empty},
		{
			name: "created_from", path: "/api/users?created_from=" + url.QueryEscape(now.Add(150*time.Minute).Format(time.RFC3339)),
			token: adminToken, wantData: marchallList(t, naughty, student),
		},
		// ordering
		{name: "order by name", path: path("", "name", nil), token: adminToken, wantData: marchallList(t, admin, lecturer, naughty, student)},
		{name: "order by created_at", path: path("", "created_at", nil), token: adminToken, wantData: marchallList(t, admin, lecturer, student, naughty)},
		{name: "order by -is_active,name", path: path("", "-is_active,name", nil), token: adminToken, wantData: marchallList(t, admin, lecturer, student, naughty)},
		{name: "filtering & ordering", path: path("", "name", bPtr(true), "student", "lecturer"), token: adminToken, wantData: marchallList(t, lecturer, student)},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runTests(t, tests)
}

func Test_userApi_detail(t *testing.T) {
	db.Reset()
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@kampus.ac.id", "", user.RoleAdmin, true)
	student := testutil.CreateUser(t, usrRepo, "Siti Aminah", "siti@kampus.ac.id", "", user.RoleStudent, true)
	other := testutil.CreateUser(t, usrRepo, "Andi Wijaya", "andi@kampus.ac.id", "", user.RoleStudent, true)

	studentToken := getToken(t, student)
	adminToken := getToken(t, admin)
	notFound := marchallObj(t, httpErr{Error: "not found"})
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{name: "self", method: http.MethodGet, path: "/api/users/" + student.ID, token: studentToken, wantData: marchallObj(t, student)},
		{name: "someone else", method: http.MethodGet, path: "/api/users/" + other.ID, token: studentToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "admin", method: http.MethodGet, path: "/api/users/" + other.ID, token: adminToken, wantData: marchallObj(t, other)},
		{name: "unknown", method: http.MethodGet, path: "/api/users/lol", token: adminToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "roles", method: http.MethodGet, path: "/api/users/roles", token: studentToken, wantData: marchallObj(t, user.Roles)},
		{
			name: "student cannot change own role", method: http.MethodPut, path: "/api/users/" + student.ID, token: studentToken,
			body: []byte(`{"role": "admin"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "student cannot change own email", method: http.MethodPut, path: "/api/users/" + student.ID, token: studentToken,
			body: []byte(`{"email": "siti2@kampus.ac.id"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "unknown major", method: http.MethodPut, path: "/api/users/" + student.ID, token: studentToken,
			body: []byte(`{"major": "LOL"}`), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"major": "unknown major"}),
		},
		{name: "delete requires admin", method: http.MethodDelete, path: "/api/users/" + student.ID, token: studentToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "admin cannot delete self", method: http.MethodDelete, path: "/api/users/" + admin.ID, token: adminToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{
			name: "admin cannot delete self (multiple)", method: http.MethodDelete, path: "/api/users?id=" + other.ID + "&id=" + admin.ID,
			token: adminToken, wantCode: http.StatusForbidden, wantData: forbidden,
		},
	}
	runTests(t, tests)

	t.Run("student updates own name", func(t *testing.T) {
		rec := serve(http.MethodPut, "/api/users/"+student.ID, studentToken, []byte(`{"name": "Siti A."}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, "Siti A.", usr.Name)
		assert.Equal(t, user.RoleStudent, usr.Role)
	})

	t.Run("admin promotes & deactivates", func(t *testing.T) {
		rec := serve(http.MethodPut, "/api/users/"+other.ID, adminToken, []byte(`{"role": "lecturer", "is_active": false}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, user.RoleLecturer, usr.Role)
		assert.Equal(t, user.MajorNone, usr.Major)
		assert.False(t, usr.IsActive)
	})

	t.Run("admin deletes", func(t *testing.T) {
		rec := serve(http.MethodDelete, "/api/users/"+other.ID, adminToken)
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = serve(http.MethodDelete, "/api/users?id="+student.ID, adminToken)
		require.Equal(t, http.StatusNoContent, rec.Code)

		users, err := usrRepo.QueryUsers(context.Background(), nil, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, admin.ID, users[0].ID)
	})
}
