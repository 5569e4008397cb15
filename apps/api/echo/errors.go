package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/assignment"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/enrollment"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
)

var (
	errUnauthorized     = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errRefreshExpired   = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden    = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound     = echo.NewHTTPError(http.StatusNotFound, "not found")
	errTooManyRequests  = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, try again later")
	errStreamingFailure = errors.New("streaming unsupported")

	// domain errors and the status they are answered with
	errStatuses = map[error]int{
		core.ErrForbidden:                http.StatusForbidden,
		core.ErrConflict:                 http.StatusConflict,
		user.ErrNotFound:                 http.StatusNotFound,
		user.ErrInvalidCredentials:       http.StatusBadRequest,
		user.ErrEmailNotConfirmed:        http.StatusForbidden,
		user.ErrAccountDeactivated:       http.StatusForbidden,
		user.ErrAlreadyConfirmed:         http.StatusConflict,
		profile.ErrNotFound:              http.StatusNotFound,
		profile.ErrNotPending:            http.StatusConflict,
		profile.ErrInvalidImage:          http.StatusBadRequest,
		class.ErrNotFound:                http.StatusNotFound,
		class.ErrScheduleNotFound:        http.StatusNotFound,
		class.ErrResourceNotFound:        http.StatusNotFound,
		class.ErrTutorNotApproved:        http.StatusForbidden,
		enrollment.ErrNotFound:           http.StatusNotFound,
		enrollment.ErrAlreadyEnrolled:    http.StatusConflict,
		enrollment.ErrClassFull:          http.StatusConflict,
		enrollment.ErrClassNotActive:     http.StatusConflict,
		enrollment.ErrNotEnrolled:        http.StatusForbidden,
		assignment.ErrNotFound:           http.StatusNotFound,
		assignment.ErrSubmissionNotFound: http.StatusNotFound,
		assignment.ErrAlreadyGraded:      http.StatusConflict,
		assignment.ErrNoFile:             http.StatusNotFound,
	}

	// stable codes clients can switch on
	errCodes = map[error]string{
		user.ErrInvalidCredentials:    "invalid_credentials",
		user.ErrEmailNotConfirmed:     "email_not_confirmed",
		user.ErrAccountDeactivated:    "account_deactivated",
		user.ErrAlreadyConfirmed:      "already_confirmed",
		profile.ErrNotFound:           "profile_not_found",
		class.ErrTutorNotApproved:     "tutor_not_approved",
		enrollment.ErrAlreadyEnrolled: "already_enrolled",
		enrollment.ErrClassFull:       "class_full",
		enrollment.ErrClassNotActive:  "class_not_active",
		enrollment.ErrNotEnrolled:     "not_enrolled",
		assignment.ErrAlreadyGraded:   "already_graded",
		errSessionRevoked:             "session_revoked",
		errRefreshExpired:             "refresh_expired",
		errTooManyRequests:            "rate_limited",
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}
		var errCode string

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			errCode = errCodes[origErr]
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if status, ok := errStatuses[cause]; ok {
				code = status
				message = cause.Error()
				errCode = errCodes[cause]
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if usr, uErr := getContextUser(ctx); uErr == nil {
				args = append(args, usr)
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			body := echo.Map{"error": m}
			if errCode != "" {
				body["code"] = errCode
			}
			message = body
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
