package dashboard

import (
	"errors"
	"net/http"

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
	g := api.Group("/dashboard")
	g.GET("/patient", h.Patient, auth.RequireRole(auth.RolePatient))
	g.GET("/doctor", h.Doctor, auth.RequireRole(auth.RoleDoctor))
	g.GET("/admin", h.Admin, auth.RequireRole(auth.RoleAdmin))
}

func httpError(err error) error {
	if errors.Is(err, ErrForbidden) {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}

func (h *Handler) Patient(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Patient(c.Request().Context(), actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Doctor(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Doctor(c.Request().Context(), actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Admin(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Admin(c.Request().Context(), actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}
