// Package dashboard assembles the per-role landing pages from the identity,
// catalog, booking and treatment services.
package dashboard

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/booking"
	"github.com/hms/hms/internal/domain/catalog"
	"github.com/hms/hms/internal/domain/treatment"
	"github.com/hms/hms/internal/platform/auth"
)

var ErrForbidden = errors.New("forbidden")

// recentTreatments caps the treatment list on the doctor dashboard.
const recentTreatments = 20

type Departments interface {
	ListDepartments(ctx context.Context) ([]*catalog.Department, error)
	CountDoctors(ctx context.Context) (int, error)
}

type Appointments interface {
	PatientUpcoming(ctx context.Context, patientID uuid.UUID) ([]*booking.AppointmentDetails, error)
	DoctorUpcoming(ctx context.Context, doctorID uuid.UUID) ([]*booking.AppointmentDetails, error)
	Upcoming(ctx context.Context, limit int) ([]*booking.AppointmentDetails, error)
	Past(ctx context.Context, limit int) ([]*booking.AppointmentDetails, error)
}

type Treatments interface {
	ByDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]*treatment.Record, error)
	Count(ctx context.Context) (int, error)
}

type Accounts interface {
	CountByRole(ctx context.Context, role auth.Role) (int, error)
}

type PatientDashboard struct {
	Departments  []*catalog.Department         `json:"departments"`
	Appointments []*booking.AppointmentDetails `json:"appointments"`
}

type DoctorDashboard struct {
	Appointments []*booking.AppointmentDetails `json:"appointments"`
	Treatments   []*treatment.Record           `json:"treatments"`
}

type AdminDashboard struct {
	TotalDoctors    int                           `json:"total_doctors"`
	TotalPatients   int                           `json:"total_patients"`
	TotalTreatments int                           `json:"total_treatments"`
	Upcoming        []*booking.AppointmentDetails `json:"upcoming_appointments"`
	Past            []*booking.AppointmentDetails `json:"past_appointments"`
}

type Service struct {
	departments  Departments
	appointments Appointments
	treatments   Treatments
	accounts     Accounts
	// listLimit bounds the admin appointment listings; 0 means unbounded.
	listLimit int
}

func NewService(departments Departments, appointments Appointments, treatments Treatments, accounts Accounts, listLimit int) *Service {
	return &Service{
		departments:  departments,
		appointments: appointments,
		treatments:   treatments,
		accounts:     accounts,
		listLimit:    listLimit,
	}
}

func (s *Service) Patient(ctx context.Context, actor auth.Actor) (*PatientDashboard, error) {
	if !actor.Is(auth.RolePatient) {
		return nil, ErrForbidden
	}
	depts, err := s.departments.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}
	appts, err := s.appointments.PatientUpcoming(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return &PatientDashboard{Departments: orEmpty(depts), Appointments: orEmpty(appts)}, nil
}

func (s *Service) Doctor(ctx context.Context, actor auth.Actor) (*DoctorDashboard, error) {
	if !actor.Is(auth.RoleDoctor) {
		return nil, ErrForbidden
	}
	appts, err := s.appointments.DoctorUpcoming(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	treatments, err := s.treatments.ByDoctor(ctx, actor.ID, recentTreatments)
	if err != nil {
		return nil, err
	}
	return &DoctorDashboard{Appointments: orEmpty(appts), Treatments: orEmpty(treatments)}, nil
}

func (s *Service) Admin(ctx context.Context, actor auth.Actor) (*AdminDashboard, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	var (
		d   AdminDashboard
		err error
	)
	if d.TotalDoctors, err = s.departments.CountDoctors(ctx); err != nil {
		return nil, err
	}
	if d.TotalPatients, err = s.accounts.CountByRole(ctx, auth.RolePatient); err != nil {
		return nil, err
	}
	if d.TotalTreatments, err = s.treatments.Count(ctx); err != nil {
		return nil, err
	}
	if d.Upcoming, err = s.appointments.Upcoming(ctx, s.listLimit); err != nil {
		return nil, err
	}
	if d.Past, err = s.appointments.Past(ctx, s.listLimit); err != nil {
		return nil, err
	}
	d.Upcoming, d.Past = orEmpty(d.Upcoming), orEmpty(d.Past)
	return &d, nil
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
