package echoapi

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core/application"
	"github.com/trezcool/hackcamp/core/user"
	exportsvc "github.com/trezcool/hackcamp/services/export"
)

type applicationApi struct {
	svc      application.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerApplicationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc application.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := applicationApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	// public
	g.POST("/applications", api.submit)

	// admin
	ag := g.Group("/admin/applications", jwt, adminMiddleware())
	ag.GET("", api.query)
	ag.DELETE("", api.destroyMultiple)
	ag.GET("/stats", api.stats)
	ag.GET("/export", api.export)
	ag.GET("/:id", api.retrieve)
	ag.DELETE("/:id", api.destroy)
	ag.POST("/:id/approve", api.approve)
	ag.POST("/:id/reject", api.reject)
}

func (api *applicationApi) submit(ctx echo.Context) error {
	var data application.NewApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewApplication")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	app, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting application")
	}
	return ctx.JSON(http.StatusCreated, app)
}

func (api *applicationApi) bindFilter(ctx echo.Context) (*application.QueryFilter, error) {
	filter := new(application.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, err
	}
	if err := filter.Validate(api.validate); err != nil {
		return nil, err
	}
	return filter, nil
}

func (api *applicationApi) query(ctx echo.Context) error {
	filter, err := api.bindFilter(ctx)
	if err != nil {
		if _, ok := errors.Cause(err).(validator.ValidationErrors); ok {
			return err
		}
		return listResponse(ctx, 0, []application.Application{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	apps, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	if apps == nil {
		apps = []application.Application{}
	}
	return listResponse(ctx, total, apps)
}

func (api *applicationApi) export(ctx echo.Context) error {
	filter, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	apps, _, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	return sendXLSX(ctx, "applications", func(w io.Writer) error {
		return exportsvc.Applications(w, apps)
	})
}

func (api *applicationApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "counting applications")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *applicationApi) retrieve(ctx echo.Context) error {
	app, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) bindReview(ctx echo.Context, rejecting bool) (application.Review, user.User, error) {
	var review application.Review
	if err := ctx.Bind(&review); err != nil {
		return review, user.User{}, errors.Wrap(err, "binding to Review")
	}
	if err := review.Validate(api.validate, rejecting); err != nil {
		return review, user.User{}, err
	}
	reviewer, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return review, user.User{}, errors.Wrap(err, "getting context user")
	}
	return review, reviewer, nil
}

func (api *applicationApi) approve(ctx echo.Context) error {
	review, reviewer, err := api.bindReview(ctx, false)
	if err != nil {
		return err
	}

	approval, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"), reviewer, review.Note)
	if err != nil {
		return errors.Wrap(err, "approving application")
	}
	return ctx.JSON(http.StatusOK, approval)
}

func (api *applicationApi) reject(ctx echo.Context) error {
	review, reviewer, err := api.bindReview(ctx, true)
	if err != nil {
		return err
	}

	app, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id"), reviewer, review.Note)
	if err != nil {
		return errors.Wrap(err, "rejecting application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) destroy(ctx echo.Context) error {
	if _, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "finding application")
	}
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting application")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *applicationApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting applications")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// sendXLSX sends a workbook as an attachment named after prefix and the current time.
func sendXLSX(ctx echo.Context, prefix string, write func(w io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return errors.Wrap(err, "writing "+prefix+" export")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, attachment(exportsvc.Filename(prefix, time.Now())))
	return ctx.Blob(http.StatusOK, exportsvc.XLSXContentType, buf.Bytes())
}

func attachment(filename string) string {
	return `attachment; filename="` + filename + `"`
}
