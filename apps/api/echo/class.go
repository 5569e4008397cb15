package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/assignment"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/enrollment"
	metricsvc "github.com/trezcool/tutorhub/services/metrics"
)

func (h *handlers) registerClassAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	cg := g.Group("/classes", jwt)
	cg.GET("", h.queryClasses)
	cg.POST("", h.createClass)

	dg := cg.Group("/:id")
	dg.GET("", h.classDetail)
	dg.PUT("", h.updateClass)
	dg.PUT("/status", h.setClassStatus)

	dg.GET("/schedules", h.querySchedules)
	dg.POST("/schedules", h.addSchedule)
	dg.DELETE("/schedules/:schedule_id", h.deleteSchedule)

	dg.GET("/resources", h.queryResources)
	dg.POST("/resources", h.addResource)
	dg.DELETE("/resources/:resource_id", h.deleteResource)

	dg.POST("/enroll", h.enroll)
	dg.POST("/drop", h.drop)
	dg.GET("/students", h.roster)

	dg.GET("/assignments", h.classAssignments)
	dg.POST("/assignments", h.createAssignment)

	g.GET("/enrollments", h.myEnrollments, jwt)
}

// Classes

func (h *handlers) queryClasses(ctx echo.Context) error {
	filter := new(class.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []class.Class{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	classes, err := h.classSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (h *handlers) createClass(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data class.NewClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err = data.Validate(h.validate); err != nil {
		return err
	}

	cls, err := h.classSvc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (h *handlers) classDetail(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	detail, err := h.dashSvc.ClassDetail(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting class detail")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (h *handlers) updateClass(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data class.UpdateClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err = data.Validate(h.validate); err != nil {
		return err
	}

	cls, err := h.classSvc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (h *handlers) setClassStatus(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data StatusRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusRequest")
	}
	data.Status = core.CleanString(data.Status, true /* lower */)

	cls, err := h.classSvc.SetStatus(ctx.Request().Context(), usr, ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "setting class status")
	}
	return ctx.JSON(http.StatusOK, cls)
}

// Schedules

func (h *handlers) querySchedules(ctx echo.Context) error {
	cls, err := h.classSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	schedules, err := h.classSvc.Schedules(ctx.Request().Context(), cls.ID)
	if err != nil {
		return errors.Wrap(err, "querying schedules")
	}
	return ctx.JSON(http.StatusOK, schedules)
}

func (h *handlers) addSchedule(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data class.NewSchedule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchedule")
	}
	if err = data.Validate(h.validate); err != nil {
		return err
	}

	sched, err := h.classSvc.AddSchedule(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding schedule")
	}
	return ctx.JSON(http.StatusCreated, sched)
}

func (h *handlers) deleteSchedule(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = h.classSvc.DeleteSchedule(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("schedule_id")); err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Resources

func (h *handlers) queryResources(ctx echo.Context) error {
	cls, err := h.classSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	resources, err := h.classSvc.Resources(ctx.Request().Context(), cls.ID)
	if err != nil {
		return errors.Wrap(err, "querying resources")
	}
	return ctx.JSON(http.StatusOK, resources)
}

func (h *handlers) addResource(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data class.NewResource
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResource")
	}
	if err = data.Validate(h.validate); err != nil {
		return err
	}

	res, err := h.classSvc.AddResource(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding resource")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (h *handlers) deleteResource(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = h.classSvc.DeleteResource(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("resource_id")); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollments

func (h *handlers) enroll(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	res, err := h.enrollSvc.Enroll(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	h.count(metricsvc.EventEnrolled)
	return ctx.JSON(http.StatusCreated, res)
}

func (h *handlers) drop(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	e, err := h.enrollSvc.Drop(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "dropping class")
	}
	h.count(metricsvc.EventDropped)
	return ctx.JSON(http.StatusOK, e)
}

func (h *handlers) roster(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	entries, err := h.enrollSvc.ForClass(ctx.Request().Context(), usr, ctx.Param("id"), ctx.QueryParam("status"))
	if err != nil {
		return errors.Wrap(err, "listing class students")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (h *handlers) myEnrollments(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	enrollments, err := h.enrollSvc.ForStudent(ctx.Request().Context(), usr.ID, ctx.QueryParam("status"))
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	if enrollments == nil {
		enrollments = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

// Assignments of a class

func (h *handlers) classAssignments(ctx echo.Context) error {
	cls, err := h.classSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	assignments, err := h.asgmtSvc.ForClass(ctx.Request().Context(), cls.ID)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (h *handlers) createAssignment(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data assignment.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err = data.Validate(h.validate); err != nil {
		return err
	}

	a, err := h.asgmtSvc.Create(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

type StatusRequest struct {
	Status string `json:"status"`
}
