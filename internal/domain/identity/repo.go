package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/auth"
)

type AccountRepository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Update(ctx context.Context, a *Account) error
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Search matches query against name, email and phone (case-insensitive).
	Search(ctx context.Context, role auth.Role, query string, limit, offset int) ([]*Account, int, error)
	CountByRole(ctx context.Context, role auth.Role) (int, error)
}
