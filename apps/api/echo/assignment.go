package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core/assignment"
	metricsvc "github.com/trezcool/tutorhub/services/metrics"
)

func (h *handlers) registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	ag := g.Group("/assignments/:id", jwt)
	ag.GET("", h.retrieveAssignment)
	ag.PUT("", h.updateAssignment)
	ag.DELETE("", h.deleteAssignment)
	ag.PUT("/file", h.attachAssignmentFile)
	ag.GET("/file", h.assignmentFileURL)
	ag.POST("/submissions", h.submit)
	ag.GET("/submissions", h.querySubmissions)
	ag.PUT("/submissions/file", h.attachSubmissionFile)

	sg := g.Group("/submissions/:id", jwt)
	sg.GET("/file", h.submissionFileURL)
	sg.PUT("/grade", h.grade)
}

func (h *handlers) retrieveAssignment(ctx echo.Context) error {
	a, err := h.asgmtSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (h *handlers) updateAssignment(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data assignment.UpdateAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err = data.Validate(h.validate); err != nil {
		return err
	}

	a, err := h.asgmtSvc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (h *handlers) deleteAssignment(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = h.asgmtSvc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h *handlers) attachAssignmentFile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	f, closer, err := uploadedFile(ctx, "file")
	if err != nil {
		return err
	}
	defer closer.Close()

	a, err := h.asgmtSvc.AttachFile(ctx.Request().Context(), usr, ctx.Param("id"), f)
	if err != nil {
		return errors.Wrap(err, "attaching assignment file")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (h *handlers) assignmentFileURL(ctx echo.Context) error {
	url, err := h.asgmtSvc.FileURL(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment file url")
	}
	return ctx.JSON(http.StatusOK, URLResponse{URL: url})
}

func (h *handlers) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data assignment.NewSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err = data.Validate(h.validate); err != nil {
		return err
	}

	sub, err := h.asgmtSvc.Submit(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	h.count(metricsvc.EventSubmitted)
	return ctx.JSON(http.StatusCreated, sub)
}

func (h *handlers) querySubmissions(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	subs, err := h.asgmtSvc.Submissions(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (h *handlers) attachSubmissionFile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	f, closer, err := uploadedFile(ctx, "file")
	if err != nil {
		return err
	}
	defer closer.Close()

	sub, err := h.asgmtSvc.AttachSubmissionFile(ctx.Request().Context(), usr, ctx.Param("id"), f)
	if err != nil {
		return errors.Wrap(err, "attaching submission file")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (h *handlers) submissionFileURL(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	url, err := h.asgmtSvc.SubmissionFileURL(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission file url")
	}
	return ctx.JSON(http.StatusOK, URLResponse{URL: url})
}

func (h *handlers) grade(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data assignment.GradeSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err = data.Validate(h.validate); err != nil {
		return err
	}

	sub, err := h.asgmtSvc.Grade(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	h.count(metricsvc.EventGraded)
	return ctx.JSON(http.StatusOK, sub)
}
