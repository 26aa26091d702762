package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/grade"
	"github.com/kampuslab/kampus/core/user"
)

type gradeApi struct {
	svc      grade.Service
	usrSvc   user.Service
	validate *validator.Validate
}

// registerGradeAPI mounts the score & final grade endpoints.
// Routes are added one by one: a group on "/courses/:id" would shadow the course detail routes.
func registerGradeAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc grade.Service,
	crsSvc course.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := gradeApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}
	crs := courseMiddleware(crsSvc)
	staff := staffMiddleware(usrSvc)

	g.GET("/courses/:id/scores", api.queryScores, jwt, crs)
	g.POST("/courses/:id/scores", api.recordScore, jwt, crs, staff)
	g.DELETE("/courses/:id/scores/:scoreID", api.destroyScore, jwt, crs, staff)

	g.GET("/courses/:id/final-grades", api.queryCourseFinalGrades, jwt, crs)
	g.GET("/courses/:id/final-grades/:studentID", api.retrieveFinalGrade, jwt, crs, ctxUserOrStaffMiddleware(usrSvc, "studentID"))
	g.POST("/courses/:id/final-grades/:studentID/recompute", api.recompute, jwt, crs, staff)

	g.GET("/users/:id/final-grades", api.queryStudentFinalGrades, jwt, ctxUserOrStaffMiddleware(usrSvc, "id"))
}

// Handlers

func (api *gradeApi) queryScores(ctx echo.Context) error {
	crs, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := grade.ScoreFilter{
		CourseID:    crs.ID,
		StudentID:   ctx.QueryParam("student_id"),
		ComponentID: ctx.QueryParam("component_id"),
	}
	// students only see their own scores
	if !ctxUsr.IsStaff() {
		filter.StudentID = ctxUsr.ID
	}

	scores, err := api.svc.Scores(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying scores")
	}
	if scores == nil {
		scores = []grade.ScoreEntry{}
	}
	return ctx.JSON(http.StatusOK, scores)
}

func (api *gradeApi) recordScore(ctx echo.Context) error {
	crs, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	var data grade.NewScore
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScore")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	data.CourseID = crs.ID

	se, err := api.svc.RecordScore(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording score")
	}
	return ctx.JSON(http.StatusCreated, se)
}

func (api *gradeApi) destroyScore(ctx echo.Context) error {
	crs, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	se, err := api.svc.Score(ctx.Request().Context(), ctx.Param("scoreID"))
	if err != nil {
		return errors.Wrap(err, "finding score")
	}
	if se.CourseID != crs.ID {
		return grade.ErrScoreNotFound
	}

	if err = api.svc.DeleteScore(ctx.Request().Context(), se.ID); err != nil {
		return errors.Wrap(err, "deleting score")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradeApi) queryCourseFinalGrades(ctx echo.Context) error {
	crs, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := grade.FinalGradeFilter{CourseID: crs.ID}
	if !ctxUsr.IsStaff() {
		filter.StudentID = ctxUsr.ID
	}
	return api.finalGrades(ctx, filter)
}

func (api *gradeApi) queryStudentFinalGrades(ctx echo.Context) error {
	usr, err := api.usrSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return api.finalGrades(ctx, grade.FinalGradeFilter{StudentID: usr.ID})
}

func (api *gradeApi) finalGrades(ctx echo.Context, filter grade.FinalGradeFilter) error {
	fgs, err := api.svc.FinalGrades(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying final grades")
	}
	if fgs == nil {
		fgs = []grade.FinalGrade{}
	}
	return ctx.JSON(http.StatusOK, fgs)
}

func (api *gradeApi) retrieveFinalGrade(ctx echo.Context) error {
	crs, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	fg, err := api.svc.FinalGrade(ctx.Request().Context(), ctx.Param("studentID"), crs.ID)
	if err != nil {
		return errors.Wrap(err, "finding final grade")
	}
	return ctx.JSON(http.StatusOK, fg)
}

func (api *gradeApi) recompute(ctx echo.Context) error {
	crs, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	fg, err := api.svc.Recompute(ctx.Request().Context(), ctx.Param("studentID"), crs.ID)
	if err != nil {
		return errors.Wrap(err, "recomputing final grade")
	}
	return ctx.JSON(http.StatusOK, fg)
}
