package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
)

// nowFunc is replaced in tests to pin the due-soon window.
var nowFunc = time.Now

func (h *handlers) registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	dg := g.Group("/dashboard", jwt)
	dg.GET("/student", h.studentDashboard)
	dg.GET("/tutor", h.tutorDashboard)
}

func (h *handlers) studentDashboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if !usr.IsStudent() {
		return core.ErrForbidden
	}
	dash, err := h.dashSvc.Student(ctx.Request().Context(), usr, nowFunc().UTC())
	if err != nil {
		return errors.Wrap(err, "loading student dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (h *handlers) tutorDashboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if !usr.IsTutor() {
		return core.ErrForbidden
	}
	dash, err := h.dashSvc.Tutor(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "loading tutor dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}
