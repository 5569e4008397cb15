package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core/contact"
	metricsvc "github.com/trezcool/tutorhub/services/metrics"
)

const contactSuccess = "Thanks for reaching out! We will get back to you soon."

func (h *handlers) registerContactAPI(g *echo.Group, limiter *rateLimiter) {
	g.POST("/contact", h.sendContactMessage, limiter.middleware())
}

func (h *handlers) sendContactMessage(ctx echo.Context) error {
	var msg contact.Message
	if err := ctx.Bind(&msg); err != nil {
		return errors.Wrap(err, "binding to contact.Message")
	}
	if err := msg.Validate(h.validate); err != nil {
		return err
	}
	if err := h.contactSvc.Send(ctx.Request().Context(), msg); err != nil {
		return errors.Wrap(err, "sending contact message")
	}
	h.count(metricsvc.EventContactMsg)
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: contactSuccess})
}
