package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core/dashboard"
)

type dashboardApi struct {
	svc dashboard.ServiceInterface
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc dashboard.ServiceInterface) {
	api := dashboardApi{svc: svc}

	g.GET("/admin/dashboard", api.admin, jwt, adminMiddleware())
	g.GET("/instructor/dashboard", api.instructor, jwt, staffMiddleware)
}

func (api *dashboardApi) admin(ctx echo.Context) error {
	data, err := api.svc.Admin(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building admin dashboard")
	}
	return ctx.JSON(http.StatusOK, data)
}

func (api *dashboardApi) instructor(ctx echo.Context) error {
	data, err := api.svc.Instructor(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building instructor dashboard")
	}
	return ctx.JSON(http.StatusOK, data)
}
