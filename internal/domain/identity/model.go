package identity

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/auth"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRoleMismatch       = errors.New("account does not hold the requested role")
	ErrBlocked            = errors.New("account is blocked")
	ErrForbidden          = errors.New("forbidden")
)

// Account maps to the accounts table. One row per login identity.
type Account struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Role         auth.Role `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsBlocked    bool      `db:"is_blocked" json:"is_blocked"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Actor returns the account as a request actor.
func (a *Account) Actor() auth.Actor {
	return auth.Actor{ID: a.ID, Role: a.Role}
}

// NewAccount is the input for creating any account. Patients come from
// Register, doctors from the catalog's AddDoctor.
type NewAccount struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     auth.Role
}

type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginRequest struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

type LoginResponse struct {
	Token   *auth.IssuedToken `json:"token"`
	Account *Account          `json:"account"`
}

// UpdateProfileRequest replaces name, email and phone. Password is only
// changed when non-empty.
type UpdateProfileRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// NormalizeEmail trims and lower-cases an address and checks its shape.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: email %q is not valid", ErrInvalidInput, raw)
	}
	return email, nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
