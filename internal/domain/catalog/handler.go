package catalog

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	authed := api.Group("", auth.RequireAuthenticated())
	authed.GET("/departments", h.ListDepartments)
	authed.GET("/departments/:id", h.GetDepartment)
	authed.GET("/doctors", h.SearchDoctors)
	authed.GET("/doctors/:id", h.GetDoctor)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/departments", h.CreateDepartment)
	admin.POST("/doctors", h.AddDoctor)
	admin.PUT("/doctors/:id", h.EditDoctor)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, identity.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrDepartmentNotFound), errors.Is(err, ErrDoctorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDepartmentNameTaken), errors.Is(err, identity.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
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

func (h *Handler) CreateDepartment(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	var req CreateDepartmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.CreateDepartment(c.Request().Context(), actor, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDepartments(c echo.Context) error {
	items, err := h.svc.ListDepartments(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Department{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetDepartment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDepartment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) AddDoctor(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	var req AddDoctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.AddDoctor(c.Request().Context(), actor, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) EditDoctor(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req EditDoctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.EditDoctor(c.Request().Context(), actor, id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SearchDoctors(c echo.Context) error {
	q, err := pagination.Parse(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.SearchDoctors(c.Request().Context(), q.Term, q.Limit, q.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, q))
}
