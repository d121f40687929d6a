package catalog

import (
	"context"

	"github.com/google/uuid"
)

type DepartmentRepository interface {
	Create(ctx context.Context, d *Department) error
	GetByID(ctx context.Context, id uuid.UUID) (*Department, error)
	List(ctx context.Context) ([]*Department, error)
	Count(ctx context.Context) (int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	// Update writes the profile row and the doctor's display name.
	Update(ctx context.Context, d *Doctor, name string) error
	GetProfile(ctx context.Context, id uuid.UUID) (*DoctorProfile, error)
	ListByDepartment(ctx context.Context, departmentID uuid.UUID) ([]*DoctorProfile, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*DoctorProfile, int, error)
	Count(ctx context.Context) (int, error)
}
