package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrForbidden           = errors.New("forbidden")
	ErrDepartmentNotFound  = errors.New("department not found")
	ErrDepartmentNameTaken = errors.New("department already exists")
	ErrDoctorNotFound      = errors.New("doctor not found")
)

type Department struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// DepartmentDetails is a department together with the doctors assigned to it.
type DepartmentDetails struct {
	*Department
	Doctors []*DoctorProfile `json:"doctors"`
}

// Doctor is the profile row keyed by the doctor's account id.
type Doctor struct {
	AccountID    uuid.UUID  `json:"account_id"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	Description  string     `json:"description"`
}

// DoctorProfile is the read model joining a doctor with its account and
// department.
type DoctorProfile struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Phone          *string    `json:"phone,omitempty"`
	IsBlocked      bool       `json:"is_blocked"`
	DepartmentID   *uuid.UUID `json:"department_id,omitempty"`
	DepartmentName *string    `json:"department_name,omitempty"`
	Description    string     `json:"description"`
}

type CreateDepartmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type AddDoctorRequest struct {
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Password     string     `json:"password"`
	DepartmentID *uuid.UUID `json:"department_id"`
	Description  string     `json:"description"`
}

type EditDoctorRequest struct {
	Name         string     `json:"name"`
	DepartmentID *uuid.UUID `json:"department_id"`
	Description  string     `json:"description"`
}

// DefaultDepartments are created by the seed command on an empty catalog.
var DefaultDepartments = []CreateDepartmentRequest{
	{Name: "General", Description: "General Physician"},
	{Name: "Cardiology", Description: "Heart Specialist"},
	{Name: "Dermatology", Description: "Skin Specialist"},
	{Name: "Neurology", Description: "Brain and Nerves"},
}
