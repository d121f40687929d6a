package booking

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("/slots", h.OpenSlot)
	doctor.DELETE("/slots/:id", h.RemoveSlot)
	doctor.GET("/doctors/:id/slots", h.DoctorSlots)
	doctor.POST("/appointments/:id/complete", h.Complete)

	patient := api.Group("", auth.RequireRole(auth.RolePatient))
	patient.GET("/doctors/:id/availability", h.Availability)
	patient.POST("/slots/:id/book", h.Book)
	patient.GET("/patients/:id/history", h.PatientHistory)

	anyRole := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	anyRole.POST("/appointments/:id/cancel", h.Cancel)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/appointments", h.ListAppointments)
}

// HTTPError maps booking errors onto HTTP status codes. It is shared with the
// packages that surface booking errors through their own handlers.
func HTTPError(err error) error {
	switch {
	case isValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case isConflict(err):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case isNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) OpenSlot(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	var req OpenSlotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	slot, err := h.svc.OpenSlot(c.Request().Context(), actor, req)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, slot)
}

func (h *Handler) RemoveSlot(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.RemoveSlot(c.Request().Context(), actor, id); err != nil {
		return HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DoctorSlots(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	entries, err := h.svc.DoctorSlots(c.Request().Context(), actor, id)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) Availability(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	view, err := h.svc.Availability(c.Request().Context(), actor, id)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) Book(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	appt, err := h.svc.Book(c.Request().Context(), actor, id)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) Cancel(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	appt, err := h.svc.Cancel(c.Request().Context(), actor, id)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) Complete(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	appt, err := h.svc.Complete(c.Request().Context(), actor, id)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) PatientHistory(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.PatientHistory(c.Request().Context(), actor, id)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, orEmpty(items))
}

// ListAppointments serves ?scope=upcoming (default) or ?scope=past.
func (h *Handler) ListAppointments(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	var (
		items []*AppointmentDetails
		err   error
	)
	switch c.QueryParam("scope") {
	case "", "upcoming":
		items, err = h.svc.Upcoming(c.Request().Context(), limit)
	case "past":
		items, err = h.svc.Past(c.Request().Context(), limit)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "scope must be upcoming or past")
	}
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, orEmpty(items))
}

func orEmpty(items []*AppointmentDetails) []*AppointmentDetails {
	if items == nil {
		return []*AppointmentDetails{}
	}
	return items
}
