package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Role is the single role an account holds.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePatient, RoleDoctor, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Actor is the authenticated caller. It is passed explicitly into every
// domain operation that makes an authorization decision.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

func (a Actor) Is(r Role) bool { return a.Role == r }

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Owns reports whether the actor is the account identified by id.
func (a Actor) Owns(id uuid.UUID) bool { return a.ID != uuid.Nil && a.ID == id }

// ContextWithActor stores the actor on ctx.
func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ActorKey, a)
}

// ActorFromContext retrieves the actor set by the auth middleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ActorKey).(Actor)
	return a, ok
}

// RequestActor returns the caller of the current request or a 401.
func RequestActor(c echo.Context) (Actor, error) {
	a, ok := ActorFromContext(c.Request().Context())
	if !ok {
		return Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return a, nil
}
