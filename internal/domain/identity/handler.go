package identity

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	// Public; the auth skipper lets these through.
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)

	authed := api.Group("", auth.RequireAuthenticated())
	authed.POST("/auth/logout", h.Logout)
	authed.GET("/me", h.Me)
	authed.PUT("/accounts/:id", h.UpdateProfile)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/patients", h.SearchPatients)
	admin.POST("/accounts/:id/toggle-block", h.ToggleBlocked)
	admin.DELETE("/accounts/:id", h.Delete)
}

// httpError maps identity errors onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrRoleMismatch), errors.Is(err, ErrBlocked), errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrAccountNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.svc.Authenticate(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Logout(c echo.Context) error {
	jti, exp, _ := auth.TokenFromContext(c.Request().Context())
	if err := h.svc.Logout(c.Request().Context(), jti, exp); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), actor, actor.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateProfile(c.Request().Context(), actor, id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) SearchPatients(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	q, err := pagination.Parse(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.SearchPatients(c.Request().Context(), actor, q.Term, q.Limit, q.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, q))
}

func (h *Handler) ToggleBlocked(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	blocked, err := h.svc.ToggleBlocked(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"id": id, "is_blocked": blocked})
}

func (h *Handler) Delete(c echo.Context) error {
	actor, err := auth.RequestActor(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), actor, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
