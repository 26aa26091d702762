package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/user"
)

var errCrsNotFoundInCtx = errors.New("course object not found in echo.Context")

type courseApi struct {
	svc      course.Service
	validate *validator.Validate
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc course.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := courseApi{
		svc:      svc,
		validate: validate,
	}
	staff := staffMiddleware(usrSvc)

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, staff)

	dg := cg.Group("/:id", courseMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staff)
	dg.DELETE("", api.destroy, staff)

	dg.GET("/components", api.queryComponents)
	dg.POST("/components", api.createComponent, staff)
	dg.PUT("/components/:componentID", api.updateComponent, staff)
	dg.DELETE("/components/:componentID", api.destroyComponent, staff)
}

// courseMiddleware sets the course identified by the `id` param under the "course" key.
func courseMiddleware(svc course.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			crs, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding course by ID")
			}
			ctx.Set("course", crs)
			return next(ctx)
		}
	}
}

func getContextCourse(ctx echo.Context) (course.Course, error) {
	crs, ok := ctx.Get("course").(course.Course)
	if !ok {
		return course.Course{}, errors.Wrap(errCrsNotFoundInCtx, "retrieving course from context")
	}
	return crs, nil
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.Query(ctx.Request().Context(), bindCourseFilter(ctx), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	crs, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	crs, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(crs, api.validate, api.svc); err != nil {
		return err
	}

	crs, err = api.svc.Update(ctx.Request().Context(), crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	crs, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), crs.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) queryComponents(ctx echo.Context) error {
	crs, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	cmps, err := api.svc.Components(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying components")
	}
	if cmps == nil {
		cmps = []course.Component{}
	}
	return ctx.JSON(http.StatusOK, cmps)
}

func (api *courseApi) createComponent(ctx echo.Context) error {
	crs, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	var data course.NewComponent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComponent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cmp, err := api.svc.AddComponent(ctx.Request().Context(), crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding component")
	}
	return ctx.JSON(http.StatusCreated, cmp)
}

func (api *courseApi) updateComponent(ctx echo.Context) error {
	crs, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	cmp, err := api.svc.Component(ctx.Request().Context(), crs.ID, ctx.Param("componentID"))
	if err != nil {
		return errors.Wrap(err, "finding component")
	}

	var data course.UpdateComponent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateComponent")
	}
	if err = data.Validate(cmp, api.validate); err != nil {
		return err
	}

	cmp, err = api.svc.UpdateComponent(ctx.Request().Context(), crs.ID, cmp.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating component")
	}
	return ctx.JSON(http.StatusOK, cmp)
}

func (api *courseApi) destroyComponent(ctx echo.Context) error {
	crs, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteComponent(ctx.Request().Context(), crs.ID, ctx.Param("componentID")); err != nil {
		return errors.Wrap(err, "deleting component")
	}
	return ctx.NoContent(http.StatusNoContent)
}
