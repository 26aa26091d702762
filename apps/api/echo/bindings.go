package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/user"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bindUserFilter reads a user.QueryFilter from the query params:
// search, role (repeatable), is_active, created_from & created_to (RFC3339).
func bindUserFilter(ctx echo.Context) (*user.QueryFilter, error) {
	params := ctx.QueryParams()
	filter := &user.QueryFilter{Search: params.Get("search")}

	for _, r := range params["role"] {
		role, err := user.ParseRole(r)
		if err != nil {
			return nil, err
		}
		filter.Roles = append(filter.Roles, role)
	}
	if v := params.Get("is_active"); v != "" {
		isActive, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Wrap(err, "parsing is_active")
		}
		filter.IsActive = &isActive
	}

	var err error
	if filter.CreatedFrom, err = parseTimeParam(params.Get("created_from")); err != nil {
		return nil, errors.Wrap(err, "parsing created_from")
	}
	if filter.CreatedTo, err = parseTimeParam(params.Get("created_to")); err != nil {
		return nil, errors.Wrap(err, "parsing created_to")
	}

	filter.Clean()
	return filter, nil
}

func bindCourseFilter(ctx echo.Context) *course.QueryFilter {
	filter := &course.QueryFilter{
		Search:     ctx.QueryParam("search"),
		Major:      ctx.QueryParam("major"),
		LecturerID: ctx.QueryParam("lecturer_id"),
	}
	filter.Clean()
	return filter
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
