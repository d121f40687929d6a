package treatment

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/booking"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrForbidden        = errors.New("forbidden")
	ErrNotToday         = errors.New("treatment can only be recorded on the appointment date")
	ErrNotCompleted     = errors.New("appointment is not completed")
	ErrTreatmentExists  = errors.New("treatment already recorded for this appointment")
)

// Treatment is the clinical note of one completed appointment.
type Treatment struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	VisitType     string    `json:"visit_type"`
	TestsDone     string    `json:"tests_done"`
	Diagnosis     string    `json:"diagnosis"`
	Prescription  string    `json:"prescription"`
	Medicines     string    `json:"medicines"`
	CreatedAt     time.Time `json:"created_at"`
}

// Record is a treatment joined with its appointment and patient.
type Record struct {
	Treatment
	PatientID   uuid.UUID      `json:"patient_id"`
	PatientName string         `json:"patient_name"`
	DoctorID    uuid.UUID      `json:"doctor_id"`
	DoctorName  string         `json:"doctor_name"`
	SlotDate    booking.Date   `json:"slot_date"`
	Period      booking.Period `json:"period"`
}

type AddTreatmentRequest struct {
	VisitType    string `json:"visit_type"`
	TestsDone    string `json:"tests_done"`
	Diagnosis    string `json:"diagnosis"`
	Prescription string `json:"prescription"`
	Medicines    string `json:"medicines"`
}

// Filter selects treatments of a doctor, optionally narrowed to one patient.
// Records are returned newest first.
type Filter struct {
	DoctorID  uuid.UUID
	PatientID *uuid.UUID
	Limit     int
}
