package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core/lesson"
	"github.com/trezcool/hackcamp/core/user"
)

type lessonApi struct {
	svc      lesson.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerLessonAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc lesson.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := lessonApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	// staff
	sg := g.Group("/instructor/lessons", jwt, staffMiddleware)
	sg.GET("", api.query)
	sg.POST("", api.create)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update)
	sg.DELETE("/:id", api.destroy)

	// everyone signed in
	pg := g.Group("/lessons", jwt)
	pg.GET("", api.listPublished)
	pg.GET("/:id", api.retrievePublished)
}

func (api *lessonApi) create(ctx echo.Context) error {
	var data lesson.EditLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	author, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	l, err := api.svc.Create(ctx.Request().Context(), data, author)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *lessonApi) query(ctx echo.Context) error {
	filter := new(lesson.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return listResponse(ctx, 0, []lesson.Lesson{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	lessons, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	if lessons == nil {
		lessons = []lesson.Lesson{}
	}
	return listResponse(ctx, total, lessons)
}

func (api *lessonApi) retrieve(ctx echo.Context) error {
	l, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *lessonApi) update(ctx echo.Context) error {
	l, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding lesson")
	}

	var data lesson.EditLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditLesson")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if l, err = api.svc.Update(ctx.Request().Context(), l, data); err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *lessonApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *lessonApi) listPublished(ctx echo.Context) error {
	lessons, err := api.svc.ListPublished(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing lessons")
	}
	if lessons == nil {
		lessons = []lesson.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *lessonApi) retrievePublished(ctx echo.Context) error {
	l, err := api.svc.GetPublished(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}
