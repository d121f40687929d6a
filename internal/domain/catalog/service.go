package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
)

// AccountCreator creates the login account behind a doctor profile.
type AccountCreator interface {
	CreateAccount(ctx context.Context, in identity.NewAccount) (*identity.Account, error)
}

type Service struct {
	tx          db.Transactor
	departments DepartmentRepository
	doctors     DoctorRepository
	accounts    AccountCreator
}

func NewService(tx db.Transactor, departments DepartmentRepository, doctors DoctorRepository, accounts AccountCreator) *Service {
	return &Service{tx: tx, departments: departments, doctors: doctors, accounts: accounts}
}

// -- Departments --

func (s *Service) CreateDepartment(ctx context.Context, actor auth.Actor, req CreateDepartmentRequest) (*Department, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.createDepartment(ctx, req)
}

func (s *Service) createDepartment(ctx context.Context, req CreateDepartmentRequest) (*Department, error) {
	d := &Department{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}
	if d.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if d.Description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if err := s.departments.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListDepartments(ctx context.Context) ([]*Department, error) {
	return s.departments.List(ctx)
}

func (s *Service) GetDepartment(ctx context.Context, id uuid.UUID) (*DepartmentDetails, error) {
	d, err := s.departments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doctors, err := s.doctors.ListByDepartment(ctx, id)
	if err != nil {
		return nil, err
	}
	if doctors == nil {
		doctors = []*DoctorProfile{}
	}
	return &DepartmentDetails{Department: d, Doctors: doctors}, nil
}

// EnsureDepartments seeds the default departments when the catalog is empty
// and reports how many were created.
func (s *Service) EnsureDepartments(ctx context.Context) (int, error) {
	n, err := s.departments.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	created := 0
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, req := range DefaultDepartments {
			if _, err := s.createDepartment(ctx, req); err != nil {
				return fmt.Errorf("seed department %s: %w", req.Name, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// -- Doctors --

// AddDoctor creates the doctor's account and profile in one transaction.
func (s *Service) AddDoctor(ctx context.Context, actor auth.Actor, req AddDoctorRequest) (*DoctorProfile, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}

	var profile *DoctorProfile
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if req.DepartmentID != nil {
			if _, err := s.departments.GetByID(ctx, *req.DepartmentID); err != nil {
				return err
			}
		}
		acct, err := s.accounts.CreateAccount(ctx, identity.NewAccount{
			Name:     req.Name,
			Email:    req.Email,
			Phone:    req.Phone,
			Password: req.Password,
			Role:     auth.RoleDoctor,
		})
		if err != nil {
			return err
		}
		if err := s.doctors.Create(ctx, &Doctor{
			AccountID:    acct.ID,
			DepartmentID: req.DepartmentID,
			Description:  description,
		}); err != nil {
			return err
		}
		profile, err = s.doctors.GetProfile(ctx, acct.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) EditDoctor(ctx context.Context, actor auth.Actor, id uuid.UUID, req EditDoctorRequest) (*DoctorProfile, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	d := &Doctor{AccountID: id, DepartmentID: req.DepartmentID, Description: strings.TrimSpace(req.Description)}

	var profile *DoctorProfile
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if d.DepartmentID != nil {
			if _, err := s.departments.GetByID(ctx, *d.DepartmentID); err != nil {
				return err
			}
		}
		if err := s.doctors.Update(ctx, d, name); err != nil {
			return err
		}
		var err error
		profile, err = s.doctors.GetProfile(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*DoctorProfile, error) {
	return s.doctors.GetProfile(ctx, id)
}

func (s *Service) SearchDoctors(ctx context.Context, query string, limit, offset int) ([]*DoctorProfile, int, error) {
	return s.doctors.Search(ctx, strings.TrimSpace(query), limit, offset)
}

func (s *Service) CountDoctors(ctx context.Context) (int, error) {
	return s.doctors.Count(ctx)
}
