package echoapi

import (
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core/task"
	"github.com/trezcool/hackcamp/core/user"
	exportsvc "github.com/trezcool/hackcamp/services/export"
)

type taskApi struct {
	svc      task.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerTaskAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc task.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := taskApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	// staff
	stg := g.Group("/instructor/tasks", jwt, staffMiddleware)
	stg.GET("", api.query)
	stg.POST("", api.create)
	stg.GET("/:id", api.retrieve)
	stg.PUT("/:id", api.update)
	stg.DELETE("/:id", api.destroy)

	ssg := g.Group("/instructor/submissions", jwt, staffMiddleware)
	ssg.GET("", api.querySubmissions)
	ssg.GET("/export", api.exportSubmissions)
	ssg.GET("/:id", api.retrieveSubmission)
	ssg.GET("/:id/file", api.downloadSubmission)
	ssg.POST("/:id/evaluate", api.evaluate)

	// everyone signed in
	tg := g.Group("/tasks", jwt)
	tg.GET("", api.query)
	tg.GET("/:id", api.retrieve)
	tg.POST("/:id/submissions", api.submit, participantMiddleware)

	sg := g.Group("/submissions", jwt)
	sg.GET("/me", api.mySubmissions)
	sg.GET("/:id", api.retrieveSubmission)
	sg.GET("/:id/file", api.downloadSubmission)
}

func (api *taskApi) create(ctx echo.Context) error {
	var data task.EditTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditTask")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	author, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	t, err := api.svc.CreateTask(ctx.Request().Context(), data, author)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *taskApi) query(ctx echo.Context) error {
	filter := new(task.TaskFilter)
	if err := ctx.Bind(filter); err != nil {
		return listResponse(ctx, 0, []task.Task{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	tasks, total, err := api.svc.QueryTasks(ctx.Request().Context(), filter, ordering.Orderings, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return listResponse(ctx, total, tasks)
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.GetTask(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) update(ctx echo.Context) error {
	t, err := api.svc.GetTask(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding task")
	}

	var data task.EditTask
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditTask")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if t, err = api.svc.UpdateTask(ctx.Request().Context(), t, data); err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteTask(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// submit accepts a JSON body with a link, or a multipart form with a `file` and/or a `link_url`.
func (api *taskApi) submit(ctx echo.Context) error {
	var data task.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var sub task.Submission
	if isMultipart(ctx) {
		up, closeFile, err := formUpload(ctx)
		if err != nil {
			return err
		}
		defer closeFile()
		sub, err = api.svc.Submit(ctx.Request().Context(), ctx.Param("id"), usr, data, up)
		if err != nil {
			return errors.Wrap(err, "submitting")
		}
	} else if sub, err = api.svc.Submit(ctx.Request().Context(), ctx.Param("id"), usr, data, nil); err != nil {
		return errors.Wrap(err, "submitting")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *taskApi) mySubmissions(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	subs, err := api.svc.ListUserSubmissions(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	if subs == nil {
		subs = []task.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *taskApi) bindSubmissionFilter(ctx echo.Context) (*task.SubmissionFilter, error) {
	filter := new(task.SubmissionFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, err
	}
	if err := filter.Validate(api.validate); err != nil {
		return nil, err
	}
	return filter, nil
}

func (api *taskApi) querySubmissions(ctx echo.Context) error {
	filter, err := api.bindSubmissionFilter(ctx)
	if err != nil {
		if _, ok := errors.Cause(err).(validator.ValidationErrors); ok {
			return err
		}
		return listResponse(ctx, 0, []task.Submission{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	subs, total, err := api.svc.QuerySubmissions(ctx.Request().Context(), filter, ordering.Orderings, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []task.Submission{}
	}
	return listResponse(ctx, total, subs)
}

func (api *taskApi) exportSubmissions(ctx echo.Context) error {
	filter, err := api.bindSubmissionFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	subs, _, err := api.svc.QuerySubmissions(ctx.Request().Context(), filter, ordering.Orderings, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	return sendXLSX(ctx, "submissions", func(w io.Writer) error {
		return exportsvc.Submissions(w, subs)
	})
}

func (api *taskApi) retrieveSubmission(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sub, err := api.svc.GetSubmissionFor(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "finding submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *taskApi) downloadSubmission(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sub, err := api.svc.GetSubmissionFor(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "finding submission")
	}

	rc, err := api.svc.OpenFile(ctx.Request().Context(), sub)
	if err != nil {
		return errors.Wrap(err, "opening submission file")
	}
	defer rc.Close()

	return streamFile(ctx, "submission-"+sub.ID, sub.FileKey, rc)
}

func (api *taskApi) evaluate(ctx echo.Context) error {
	sub, err := api.svc.GetSubmission(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding submission")
	}
	t, err := api.svc.GetTask(ctx.Request().Context(), sub.TaskID)
	if err != nil {
		return errors.Wrap(err, "finding task")
	}

	var data task.Evaluation
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Evaluation")
	}
	if err = data.Validate(api.validate, t); err != nil {
		return err
	}
	evaluator, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if sub, err = api.svc.Evaluate(ctx.Request().Context(), sub, data, evaluator); err != nil {
		return errors.Wrap(err, "evaluating submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}
