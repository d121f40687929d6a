package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/auth"
)

type Service struct {
	accounts    AccountRepository
	tokens      *auth.TokenIssuer
	revocations auth.RevocationStore
	now         func() time.Time
}

func NewService(accounts AccountRepository, tokens *auth.TokenIssuer, revocations auth.RevocationStore) *Service {
	return &Service{accounts: accounts, tokens: tokens, revocations: revocations, now: time.Now}
}

// CreateAccount validates and stores a new account. Email is trimmed and
// lower-cased before the uniqueness check.
func (s *Service) CreateAccount(ctx context.Context, in NewAccount) (*Account, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if _, ok := auth.ParseRole(string(in.Role)); !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	hash, err := auth.HashPassword(strings.TrimSpace(in.Password))
	if errors.Is(err, auth.ErrEmptyPassword) {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	a := &Account{
		Name:         name,
		Email:        email,
		Phone:        optionalString(in.Phone),
		Role:         in.Role,
		PasswordHash: hash,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Register creates a patient account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	if strings.TrimSpace(req.Password) != strings.TrimSpace(req.ConfirmPassword) {
		return nil, fmt.Errorf("%w: passwords do not match", ErrInvalidInput)
	}
	return s.CreateAccount(ctx, NewAccount{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     auth.RolePatient,
	})
}

// Authenticate checks credentials for the requested role and issues a token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	a, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(a.PasswordHash, strings.TrimSpace(req.Password)) {
		return nil, ErrInvalidCredentials
	}
	if req.Role != "" && a.Role != req.Role {
		return nil, ErrRoleMismatch
	}
	if a.IsBlocked {
		return nil, ErrBlocked
	}

	tok, err := s.tokens.Issue(a.Actor())
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: tok, Account: a}, nil
}

// Logout revokes the calling token until it would have expired.
func (s *Service) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return fmt.Errorf("%w: request was not authenticated with a token", ErrInvalidInput)
	}
	return s.revocations.Revoke(ctx, jti, expiresAt)
}

// Get returns an account the actor may see: their own, or any for admins.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Account, error) {
	if !actor.Owns(id) && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.accounts.GetByID(ctx, id)
}

// UpdateProfile edits the actor's own account, or any account for admins.
func (s *Service) UpdateProfile(ctx context.Context, actor auth.Actor, id uuid.UUID, req UpdateProfileRequest) (*Account, error) {
	if !actor.Owns(id) && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	a.Name = name
	a.Email = email
	a.Phone = optionalString(req.Phone)
	if pw := strings.TrimSpace(req.Password); pw != "" {
		hash, err := auth.HashPassword(pw)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		a.PasswordHash = hash
	}

	if err := s.accounts.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ToggleBlocked flips the blocked flag of a patient or doctor account and
// returns the new state. Blocking invalidates every token already issued.
func (s *Service) ToggleBlocked(ctx context.Context, actor auth.Actor, id uuid.UUID) (bool, error) {
	if !actor.IsAdmin() {
		return false, ErrForbidden
	}
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if a.Role == auth.RoleAdmin {
		return false, fmt.Errorf("%w: admin accounts cannot be blocked", ErrForbidden)
	}

	blocked := !a.IsBlocked
	if err := s.accounts.SetBlocked(ctx, id, blocked); err != nil {
		return false, err
	}
	if blocked {
		if err := s.revokeUser(ctx, id); err != nil {
			return blocked, err
		}
	}
	return blocked, nil
}

// Delete removes a patient or doctor account along with everything that
// references it.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.Role == auth.RoleAdmin {
		return fmt.Errorf("%w: admin accounts cannot be deleted", ErrForbidden)
	}
	if err := s.accounts.Delete(ctx, id); err != nil {
		return err
	}
	return s.revokeUser(ctx, id)
}

func (s *Service) revokeUser(ctx context.Context, id uuid.UUID) error {
	if s.revocations == nil {
		return nil
	}
	var ttl time.Duration
	if s.tokens != nil {
		ttl = s.tokens.TTL()
	}
	return s.revocations.RevokeUser(ctx, id.String(), s.now(), ttl)
}

func (s *Service) SearchPatients(ctx context.Context, actor auth.Actor, query string, limit, offset int) ([]*Account, int, error) {
	if !actor.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	return s.accounts.Search(ctx, auth.RolePatient, strings.TrimSpace(query), limit, offset)
}

func (s *Service) CountByRole(ctx context.Context, role auth.Role) (int, error) {
	return s.accounts.CountByRole(ctx, role)
}

// EnsureAdmin creates the default admin when no admin account exists.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	n, err := s.accounts.CountByRole(ctx, auth.RoleAdmin)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	_, err = s.CreateAccount(ctx, NewAccount{
		Name:     "Administrator",
		Email:    email,
		Password: password,
		Role:     auth.RoleAdmin,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
