package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/user"
	metricsvc "github.com/trezcool/tutorhub/services/metrics"
)

const passwordResetSuccess = "If the email address supplied is associated with an active account on this system, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

func (h *handlers) registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/signup", h.signUp)
	ag.POST("/signin", h.signIn)
	ag.POST("/password-reset", h.resetPassword)
	ag.POST("/password-reset-confirm", h.confirmPasswordReset)
	ag.POST("/resend-verification", h.resendVerification)
	ag.POST("/confirm-email", h.confirmEmail)

	// authed endpoints
	ag.POST("/token-refresh", h.refreshToken, jwt)
	ag.POST("/signout", h.signOut, jwt)
	ag.GET("/user", h.currentUser, jwt)
	ag.PUT("/user", h.updateCredentials, jwt)
	ag.GET("/events", h.streamEvents, jwt)
}

// Handlers

func (h *handlers) signUp(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(h.validate, h.usrSvc); err != nil {
		return err
	}

	usr, err := h.usrSvc.SignUp(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing up")
	}
	h.count(metricsvc.EventSignUp)
	return ctx.JSON(http.StatusCreated, usr)
}

func (h *handlers) signIn(ctx echo.Context) error {
	var data SignInRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignInRequest")
	}
	if err := data.Validate(h.validate); err != nil {
		return err
	}

	usr, err := h.usrSvc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := h.auth.newToken(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, SignInResponse{Token: token, User: usr})
}

func (h *handlers) resetPassword(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(h.validate); err != nil {
		return err
	}

	if err := h.usrSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil && errors.Cause(err) != user.ErrNotFound {
		// do not return errors to attackers
		h.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetSuccess})
}

func (h *handlers) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(h.validate); err != nil {
		return err
	}

	if err := h.usrSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

// resendVerification answers the same way for unknown addresses.
func (h *handlers) resendVerification(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(h.validate); err != nil {
		return err
	}

	if err := h.usrSvc.ResendVerification(ctx.Request().Context(), data.Email); err != nil && errors.Cause(err) != user.ErrNotFound {
		return errors.Wrap(err, "resending verification")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "If the account exists, a new confirmation email is on its way."})
}

func (h *handlers) confirmEmail(ctx echo.Context) error {
	var data user.ConfirmUserEmail
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmUserEmail")
	}
	if err := data.Validate(h.validate); err != nil {
		return err
	}

	usr, err := h.usrSvc.ConfirmEmail(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "confirming email")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (h *handlers) refreshToken(ctx echo.Context) error {
	token, err := h.auth.refresh(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (h *handlers) signOut(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = h.usrSvc.SignOut(ctx.Request().Context(), usr); err != nil {
		return errors.Wrap(err, "signing out")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h *handlers) currentUser(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (h *handlers) updateCredentials(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data user.UpdateCredentials
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCredentials")
	}
	if err = data.Validate(usr, h.validate, h.usrSvc); err != nil {
		return err
	}

	usr, err = h.usrSvc.UpdateCredentials(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating credentials")
	}
	return ctx.JSON(http.StatusOK, usr)
}

type (
	SignInRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	SignInResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	EmailRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (sr *SignInRequest) Validate(validate *validator.Validate) error {
	sr.Email = core.CleanString(sr.Email, true /* lower */)
	return validate.Struct(sr)
}

func (er *EmailRequest) Validate(validate *validator.Validate) error {
	er.Email = core.CleanString(er.Email, true /* lower */)
	return validate.Struct(er)
}
