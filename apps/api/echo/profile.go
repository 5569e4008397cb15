package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core/profile"
)

func (h *handlers) registerProfileAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	pg := g.Group("/profiles", jwt)
	pg.POST("", h.ensureProfile)
	pg.GET("/me", h.myProfile)
	pg.PUT("/me", h.updateProfile)
	pg.PUT("/me/avatar", h.setAvatar)
	pg.GET("/:user_id", h.retrieveProfile)
}

// ensureProfile creates the caller's profile if missing: 201 when created, 200 when it existed.
func (h *handlers) ensureProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	p, created, err := h.profSvc.Ensure(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "ensuring profile")
	}
	if created {
		return ctx.JSON(http.StatusCreated, p)
	}
	return ctx.JSON(http.StatusOK, p)
}

func (h *handlers) myProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	p, err := h.profSvc.Get(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (h *handlers) retrieveProfile(ctx echo.Context) error {
	p, err := h.profSvc.Get(ctx.Request().Context(), ctx.Param("user_id"))
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (h *handlers) updateProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data profile.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(h.validate); err != nil {
		return err
	}

	p, err := h.profSvc.Update(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (h *handlers) setAvatar(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	f, closer, err := uploadedFile(ctx, "avatar")
	if err != nil {
		return err
	}
	defer closer.Close()

	p, err := h.profSvc.SetAvatar(ctx.Request().Context(), usr.ID, f.Content)
	if err != nil {
		return errors.Wrap(err, "setting avatar")
	}
	return ctx.JSON(http.StatusOK, p)
}
