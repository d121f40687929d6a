package booking

import (
	"context"

	"github.com/google/uuid"
)

type SlotRepository interface {
	// Create fails with ErrDuplicateSlot when the doctor already offers the
	// date and period, and with ErrDoctorNotFound for an unknown doctor.
	Create(ctx context.Context, s *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// GetForUpdate locks the slot row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error)
	// Delete removes the slot with its appointment rows and returns how many
	// appointment rows were discarded.
	Delete(ctx context.Context, id uuid.UUID) (int, error)
	// ListStates returns the doctor's slots dated in [from, to) with their
	// latest appointment row. A zero to means no upper bound.
	ListStates(ctx context.Context, doctorID uuid.UUID, from, to Date) ([]SlotState, error)
	// DoctorExists reports whether doctorID names a doctor profile.
	DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error)
}

type AppointmentRepository interface {
	// Create appends a booked row. A violated per-slot uniqueness maps to
	// ErrSlotTaken, the per-patient period uniqueness to ErrDoubleBooking.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Latest returns the most recently created row of the slot, or nil.
	Latest(ctx context.Context, slotID uuid.UUID) (*Appointment, error)
	// HasUncancelled reports whether any row of the slot, not only the
	// latest, is booked or completed.
	HasUncancelled(ctx context.Context, slotID uuid.UUID) (bool, error)
	HasBookedInPeriod(ctx context.Context, patientID uuid.UUID, date Date, period Period) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	List(ctx context.Context, f AppointmentFilter) ([]*AppointmentDetails, error)
}
