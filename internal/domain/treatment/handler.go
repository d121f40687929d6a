package treatment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/domain/booking"
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
	doctor.POST("/appointments/:id/treatment", h.Add)
	doctor.GET("/patients/:id/treatments", h.PatientHistory)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotToday):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotCompleted), errors.Is(err, ErrTreatmentExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return booking.HTTPError(err)
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Add(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req AddTreatmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.Add(c.Request().Context(), actor, id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
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
		return httpError(err)
	}
	if items == nil {
		items = []*Record{}
	}
	return c.JSON(http.StatusOK, items)
}
