package treatment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/booking"
	"github.com/hms/hms/internal/platform/auth"
)

// Appointments is the part of the booking service treatments depend on.
type Appointments interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
	Today() booking.Date
}

type Service struct {
	repo  Repository
	appts Appointments
}

func NewService(repo Repository, appts Appointments) *Service {
	return &Service{repo: repo, appts: appts}
}

// Add records the treatment of a completed appointment. Only the
// appointment's doctor may do so, on the appointment date, once.
func (s *Service) Add(ctx context.Context, actor auth.Actor, apptID uuid.UUID, req AddTreatmentRequest) (*Treatment, error) {
	a, err := s.appts.GetAppointment(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(auth.RoleDoctor) || !actor.Owns(a.DoctorID) {
		return nil, ErrForbidden
	}
	if today := s.appts.Today(); !a.SlotDate.Equal(today) {
		return nil, fmt.Errorf("%w: appointment is on %s", ErrNotToday, a.SlotDate)
	}
	if a.Status != booking.StatusCompleted {
		return nil, fmt.Errorf("%w: status is %s", ErrNotCompleted, a.Status)
	}

	t := &Treatment{
		AppointmentID: a.ID,
		VisitType:     strings.TrimSpace(req.VisitType),
		TestsDone:     strings.TrimSpace(req.TestsDone),
		Diagnosis:     strings.TrimSpace(req.Diagnosis),
		Prescription:  strings.TrimSpace(req.Prescription),
		Medicines:     strings.TrimSpace(req.Medicines),
	}
	if t.VisitType == "" && t.TestsDone == "" && t.Diagnosis == "" && t.Prescription == "" && t.Medicines == "" {
		return nil, fmt.Errorf("%w: treatment has no content", ErrInvalidInput)
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ByDoctor lists the doctor's recorded treatments, newest first.
func (s *Service) ByDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]*Record, error) {
	return s.repo.List(ctx, Filter{DoctorID: doctorID, Limit: limit})
}

// PatientHistory lists the treatments the calling doctor recorded for one
// patient.
func (s *Service) PatientHistory(ctx context.Context, actor auth.Actor, patientID uuid.UUID) ([]*Record, error) {
	if !actor.Is(auth.RoleDoctor) {
		return nil, ErrForbidden
	}
	return s.repo.List(ctx, Filter{DoctorID: actor.ID, PatientID: &patientID})
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
