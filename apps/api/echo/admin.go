package echoapi

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
)

type (
	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}

	DeletedResponse struct {
		Deleted int `json:"deleted"`
	}
)

func (h *handlers) registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	ag := g.Group("/admin", jwt, adminMiddleware())
	ag.GET("/users", h.queryUsers)
	ag.DELETE("/users", h.destroyUsers)
	ag.DELETE("/users/:id", h.destroyUser)
	ag.POST("/users/:id/approve", h.approveTutor)
	ag.POST("/users/:id/reject", h.rejectTutor)
	ag.GET("/approvals/pending", h.pendingApprovals)
	ag.GET("/approvals/recent", h.recentApprovals)
}

func (h *handlers) queryUsers(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := h.usrSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (h *handlers) destroyUser(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	usr, err := h.usrSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting user")
	}
	// admins cannot delete themselves
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if _, err = h.usrSvc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h *handlers) destroyUsers(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.JSON(http.StatusOK, DeletedResponse{})
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	sort.Strings(query.IDs)
	if i := sort.SearchStrings(query.IDs, ctxUsr.ID); i < len(query.IDs) && query.IDs[i] == ctxUsr.ID {
		return errHttpForbidden
	}

	n, err := h.usrSvc.Delete(ctx.Request().Context(), query.IDs...)
	if err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.JSON(http.StatusOK, DeletedResponse{Deleted: n})
}

func (h *handlers) approveTutor(ctx echo.Context) error {
	admin, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	p, err := h.profSvc.Approve(ctx.Request().Context(), admin, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving tutor")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (h *handlers) rejectTutor(ctx echo.Context) error {
	admin, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data profile.Decision
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	if err = h.validate.Struct(data); err != nil {
		return err
	}

	p, err := h.profSvc.Reject(ctx.Request().Context(), admin, ctx.Param("id"), data.Note)
	if err != nil {
		return errors.Wrap(err, "rejecting tutor")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (h *handlers) pendingApprovals(ctx echo.Context) error {
	approvals, err := h.profSvc.PendingApprovals(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing pending approvals")
	}
	if approvals == nil {
		approvals = []profile.Approval{}
	}
	return ctx.JSON(http.StatusOK, approvals)
}

// recentApprovals lists the decisions taken since ?since= (default: the last 30 days).
func (h *handlers) recentApprovals(ctx echo.Context) error {
	since, err := timeParam(ctx, "since")
	if err != nil {
		return err
	}
	approvals, err := h.profSvc.RecentApprovals(ctx.Request().Context(), since)
	if err != nil {
		return errors.Wrap(err, "listing recent approvals")
	}
	if approvals == nil {
		approvals = []profile.Approval{}
	}
	return ctx.JSON(http.StatusOK, approvals)
}
