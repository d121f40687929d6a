package identity

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/auth"
)

// -- Mock Repository --

type mockAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*Account
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: make(map[uuid.UUID]*Account)}
}

func (m *mockAccountRepo) emailTaken(email string, except uuid.UUID) bool {
	for _, a := range m.accounts {
		if a.Email == email && a.ID != except {
			return true
		}
	}
	return false
}

func (m *mockAccountRepo) Create(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTaken(a.Email, uuid.Nil) {
		return ErrEmailTaken
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *mockAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccountRepo) GetByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *mockAccountRepo) Update(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.ID]; !ok {
		return ErrAccountNotFound
	}
	if m.emailTaken(a.Email, a.ID) {
		return ErrEmailTaken
	}
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *mockAccountRepo) SetBlocked(_ context.Context, id uuid.UUID, blocked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.IsBlocked = blocked
	return nil
}

func (m *mockAccountRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *mockAccountRepo) Search(_ context.Context, role auth.Role, query string, limit, offset int) ([]*Account, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	var result []*Account
	for _, a := range m.accounts {
		if a.Role != role {
			continue
		}
		phone := ""
		if a.Phone != nil {
			phone = *a.Phone
		}
		if q != "" && !strings.Contains(strings.ToLower(a.Name), q) &&
			!strings.Contains(a.Email, q) && !strings.Contains(phone, q) {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	total := len(result)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

func (m *mockAccountRepo) CountByRole(_ context.Context, role auth.Role) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.accounts {
		if a.Role == role {
			n++
		}
	}
	return n, nil
}

var testSigningKey = []byte("identity-test-signing-key-0123456789abcdef")

func newTestService() (*Service, *auth.TokenRevocationStore) {
	store := auth.NewTokenRevocationStore()
	tokens := auth.NewTokenIssuer(testSigningKey, "hms-test", time.Hour)
	return NewService(newMockAccountRepo(), tokens, store), store
}

func registerPatient(t *testing.T, svc *Service, email string) *Account {
	t.Helper()
	a, err := svc.Register(context.Background(), RegisterRequest{
		Name: "Pat " + email, Email: email, Password: "secret", ConfirmPassword: "secret",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return a
}

func adminActor() auth.Actor {
	return auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin}
}

// -- Register --

func TestService_Register(t *testing.T) {
	svc, store := newTestService()
	defer store.Close()

	a, err := svc.Register(context.Background(), RegisterRequest{
		Name:            "  Asha Rao ",
		Email:           " Asha@Example.COM ",
		Phone:           " 555-0101 ",
		Password:        "pw",
		ConfirmPassword: "pw",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Name != "Asha Rao" || a.Email != "asha@example.com" {
		t.Errorf("expected trimmed name and lower-cased email, got %q %q", a.Name, a.Email)
	}
	if a.Phone == nil || *a.Phone != "555-0101" {
		t.Errorf("expected trimmed phone, got %v", a.Phone)
	}
	if a.Role != auth.RolePatient {
		t.Errorf("expected patient role, got %s", a.Role)
	}
	if a.PasswordHash == "" || a.PasswordHash == "pw" {
		t.Error("expected password to be hashed")
	}
}

func TestService_Register_Validation(t *testing.T) {
	svc, store := newTestService()
	defer store.Close()

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing name", RegisterRequest{Email: "a@b.com", Password: "x", ConfirmPassword: "x"}},
		{"missing email", RegisterRequest{Name: "A", Password: "x", ConfirmPassword: "x"}},
		{"bad email", RegisterRequest{Name: "A", Email: "not-an-email", Password: "x", ConfirmPassword: "x"}},
		{"missing password", RegisterRequest{Name: "A", Email: "a@b.com"}},
		{"password mismatch", RegisterRequest{Name: "A", Email: "a@b.com", Password: "x", ConfirmPassword: "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	svc, store := newTestService()
	defer store.Close()

	registerPatient(t, svc, "dup@example.com")
	_, err := svc.Register(context.Background(), RegisterRequest{
		Name: "Other", Email: "DUP@example.com", Password: "x", ConfirmPassword: "x",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

// -- Authenticate --

func TestService_Authenticate(t *testing.T) {
	svc, store := newTestService()
	defer store.Close()
	a := registerPatient(t, svc, "login@example.com")

	resp, err := svc.Authenticate(context.Background(), LoginRequest{
		Email: "Login@Example.com", Password: "secret", Role: auth.RolePatient,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claims, err := svc.tokens.Parse(resp.Token.AccessToken)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Actor() != a.Actor() {
		t.Errorf("expected token for %+v, got %+v", a.Actor(), claims.Actor())
	}
}

func TestService_Authenticate_Failures(t *testing.T) {
	svc, store := newTestService()
	defer store.Close()
	blocked := registerPatient(t, svc, "blocked@example.com")
	registerPatient(t, svc, "ok@example.com")
	if _, err := svc.ToggleBlocked(context.Background(), adminActor(), blocked.ID); err != nil {
		t.Fatalf("block: %v", err)
	}

	tests := []struct {
		name string
		req  LoginRequest
		want error
	}{
		{"unknown email", LoginRequest{Email: "nobody@example.com", Password: "secret"}, ErrInvalidCredentials},
		{"wrong password", LoginRequest{Email: "ok@example.com", Password: "nope"}, ErrInvalidCredentials},
		{"malformed email", LoginRequest{Email: "", Password: "secret"}, ErrInvalidCredentials},
		{"role mismatch", LoginRequest{Email: "ok@example.com", Password: "secret", Role: auth.RoleDoctor}, ErrRoleMismatch},
		{"blocked", LoginRequest{Email: "blocked@example.com", Password: "secret", Role: auth.RolePatient}, ErrBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// -- Logout --

func TestService_Logout(t *testing.T) {
	svc, store := newTestService()
	defer store.Close()
	ctx := context.Background()

	if err := svc.Logout(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revoked, _ := store.IsRevoked(ctx, "jti-1"); !revoked {
		t.Error("expected token to be revoked after logout")
	}
	if err := svc.Logout(ctx, "", time.Now()); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput without a token id, got %v", err)
	}
}

// -- Profile --

func TestService_UpdateProfile(t *testing.T) {
	svc, store := newTestService()
	defer store.Close()
	a := registerPatient(t, svc, "me@example.com")
	other := registerPatient(t, svc, "other@example.com")
	ctx := context.Background()

	updated, err := svc.UpdateProfile(ctx, a.Actor(), a.ID, UpdateProfileRequest{
		Name: "New Name", Email: "me2@example.com", Password: "newpw",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name != "New Name" || updated.Email != "me2@example.com" {
		t.Errorf("unexpected profile: %+v", updated)
	}
	if !auth.CheckPassword(updated.PasswordHash, "newpw") {
		t.Error("expected password to change")
	}

	if _, err := svc.UpdateProfile(ctx, a.Actor(), a.ID, UpdateProfileRequest{
		Name: "X", Email: "other@example.com",
	}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	if _, err := svc.UpdateProfile(ctx, other.Actor(), a.ID, UpdateProfileRequest{
		Name: "Hijack", Email: "x@example.com",
	}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for another patient, got %v", err)
	}

	if _, err := svc.UpdateProfile(ctx, adminActor(), a.ID, UpdateProfileRequest{
		Name: "By Admin", Email: "me2@example.com",
	}); err != nil {
		t.Errorf("expected admin update to succeed, got %v", err)
	}
}

func TestService_UpdateProfile_KeepsPasswordWhenEmpty(t *testing.T) {
	svc, store := newTestService()
	defer store.Close()
	a := registerPatient(t, svc, "keep@example.com")

	updated, err := svc.UpdateProfile(context.Background(), a.Actor(), a.ID, UpdateProfileRequest{
		Name: "Keep", Email: "keep@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !auth.CheckPassword(updated.PasswordHash, "secret") {
		t.Error("expected original password to remain valid")
	}
}

// -- Admin operations --

func TestService_ToggleBlocked(t *testing.T) {
	svc, store := newTestService()
	defer store.Close()
	ctx := context.Background()
	a := registerPatient(t, svc, "tog@example.com")

	blocked, err := svc.ToggleBlocked(ctx, adminActor(), a.ID)
	if err != nil || !blocked {
		t.Fatalf("expected blocked=true, got %v (%v)", blocked, err)
	}
	if _, ok, _ := store.UserRevokedAt(ctx, a.ID.String()); !ok {
		t.Error("expected existing tokens to be revoked on block")
	}

	blocked, err = svc.ToggleBlocked(ctx, adminActor(), a.ID)
	if err != nil || blocked {
		t.Fatalf("expected blocked=false, got %v (%v)", blocked, err)
	}

	if _, err := svc.ToggleBlocked(ctx, a.Actor(), a.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-admin, got %v", err)
	}
	if _, err := svc.ToggleBlocked(ctx, adminActor(), uuid.New()); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestService_AdminAccountsAreProtected(t *testing.T) {
	svc, store := newTestService()
	defer store.Close()
	ctx := context.Background()

	if _, err := svc.EnsureAdmin(ctx, "admin@hms.com", "admin123"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	admin, _ := svc.accounts.GetByEmail(ctx, "admin@hms.com")

	if _, err := svc.ToggleBlocked(ctx, adminActor(), admin.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected admin block to be refused, got %v", err)
	}
	if err := svc.Delete(ctx, adminActor(), admin.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected admin delete to be refused, got %v", err)
	}
}

func TestService_Delete(t *testing.T) {
	svc, store := newTestService()
	defer store.Close()
	ctx := context.Background()
	a := registerPatient(t, svc, "del@example.com")

	if err := svc.Delete(ctx, a.Actor(), a.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-admin, got %v", err)
	}
	if err := svc.Delete(ctx, adminActor(), a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.accounts.GetByID(ctx, a.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected account to be gone, got %v", err)
	}
	if _, ok, _ := store.UserRevokedAt(ctx, a.ID.String()); !ok {
		t.Error("expected tokens of a deleted account to be revoked")
	}
}

func TestService_SearchPatients(t *testing.T) {
	svc, store := newTestService()
	defer store.Close()
	ctx := context.Background()
	registerPatient(t, svc, "alpha@example.com")
	registerPatient(t, svc, "beta@example.com")

	items, total, err := svc.SearchPatients(ctx, adminActor(), " alpha ", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].Email != "alpha@example.com" {
		t.Errorf("expected only alpha, got %d items (total %d)", len(items), total)
	}

	_, total, _ = svc.SearchPatients(ctx, adminActor(), "", 10, 0)
	if total != 2 {
		t.Errorf("expected 2 patients, got %d", total)
	}

	if _, _, err := svc.SearchPatients(ctx, auth.Actor{ID: uuid.New(), Role: auth.RoleDoctor}, "", 10, 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for doctor, got %v", err)
	}
}

func TestService_EnsureAdmin_Idempotent(t *testing.T) {
	svc, store := newTestService()
	defer store.Close()
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "admin@hms.com", "admin123")
	if err != nil || !created {
		t.Fatalf("expected admin to be created, got %v (%v)", created, err)
	}
	created, err = svc.EnsureAdmin(ctx, "admin@hms.com", "admin123")
	if err != nil || created {
		t.Fatalf("expected second call to be a no-op, got %v (%v)", created, err)
	}
	if n, _ := svc.CountByRole(ctx, auth.RoleAdmin); n != 1 {
		t.Errorf("expected exactly one admin, got %d", n)
	}
}
