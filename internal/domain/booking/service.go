package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/outbox"
)

const (
	aggregateSlot        = "slot"
	aggregateAppointment = "appointment"
)

type Config struct {
	// Location decides which calendar day is "today".
	Location *time.Location
	// WindowDays is the length of the rolling window slots may be opened in.
	WindowDays int
}

// Service is the slot ledger and booking engine. Every mutation runs in one
// transaction that also appends its outbox event.
type Service struct {
	tx           db.Transactor
	slots        SlotRepository
	appointments AppointmentRepository
	events       outbox.Recorder
	loc          *time.Location
	windowDays   int
	now          func() time.Time
}

func NewService(tx db.Transactor, slots SlotRepository, appts AppointmentRepository, events outbox.Recorder, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.WindowDays < 1 {
		cfg.WindowDays = 7
	}
	return &Service{
		tx:           tx,
		slots:        slots,
		appointments: appts,
		events:       events,
		loc:          cfg.Location,
		windowDays:   cfg.WindowDays,
		now:          time.Now,
	}
}

// Today is the current calendar date in the clinic's time zone.
func (s *Service) Today() Date {
	return DateOf(s.now().In(s.loc))
}

// Window is the rolling set of dates slots can be opened and booked for.
func (s *Service) Window() []Date {
	return Window(s.Today(), s.windowDays)
}

func (s *Service) record(ctx context.Context, aggregateType string, id uuid.UUID, eventType string, payload interface{}) error {
	evt, err := outbox.NewEvent(aggregateType, id.String(), eventType, payload)
	if err != nil {
		return err
	}
	if err := s.events.Record(ctx, evt); err != nil {
		return fmt.Errorf("record %s: %w", eventType, err)
	}
	return nil
}

type slotEvent struct {
	SlotID   uuid.UUID `json:"slot_id"`
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     Date      `json:"date"`
	Period   Period    `json:"period"`
	// Discarded counts appointment rows removed with the slot.
	Discarded *int `json:"discarded_appointments,omitempty"`
}

type appointmentEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	SlotID        uuid.UUID `json:"slot_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Date          Date      `json:"date"`
	Period        Period    `json:"period"`
	Status        Status    `json:"status"`
	ActorID       uuid.UUID `json:"actor_id"`
	ActorRole     auth.Role `json:"actor_role"`
}

func newAppointmentEvent(a *Appointment, actor auth.Actor) appointmentEvent {
	return appointmentEvent{
		AppointmentID: a.ID,
		SlotID:        a.SlotID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		Date:          a.SlotDate,
		Period:        a.Period,
		Status:        a.Status,
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
	}
}

// -- Slot ledger --

// OpenSlot offers a (date, period) for a doctor. Doctors open their own
// slots; admins name the doctor. Duplicates are rejected by the storage
// uniqueness constraint rather than a prior lookup.
func (s *Service) OpenSlot(ctx context.Context, actor auth.Actor, req OpenSlotRequest) (*Slot, error) {
	var doctorID uuid.UUID
	switch {
	case actor.IsAdmin():
		if req.DoctorID == nil || *req.DoctorID == uuid.Nil {
			return nil, fmt.Errorf("%w: doctor_id is required", ErrInvalidInput)
		}
		doctorID = *req.DoctorID
	case actor.Is(auth.RoleDoctor):
		if req.DoctorID != nil && *req.DoctorID != actor.ID {
			return nil, ErrForbidden
		}
		doctorID = actor.ID
	default:
		return nil, ErrForbidden
	}

	period, err := ParsePeriod(req.Period)
	if err != nil {
		return nil, err
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	today := s.Today()
	if date.Before(today) || !date.Before(today.AddDays(s.windowDays)) {
		return nil, fmt.Errorf("%w: %s is not within %s and the next %d days", ErrInvalidDate, date, today, s.windowDays-1)
	}

	slot := &Slot{DoctorID: doctorID, Date: date, Period: period}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.slots.Create(ctx, slot); err != nil {
			return err
		}
		return s.record(ctx, aggregateSlot, slot.ID, outbox.SlotOpened, slotEvent{
			SlotID: slot.ID, DoctorID: slot.DoctorID, Date: slot.Date, Period: slot.Period,
		})
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// RemoveSlot deletes a slot whose appointment rows are all cancelled,
// together with that cancelled history. A completed visit anywhere in the
// history keeps the slot.
func (s *Service) RemoveSlot(ctx context.Context, actor auth.Actor, slotID uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		slot, err := s.slots.GetForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !(actor.Is(auth.RoleDoctor) && actor.Owns(slot.DoctorID)) {
			return ErrForbidden
		}
		held, err := s.appointments.HasUncancelled(ctx, slotID)
		if err != nil {
			return err
		}
		if held {
			return ErrSlotBooked
		}
		discarded, err := s.slots.Delete(ctx, slotID)
		if err != nil {
			return err
		}
		return s.record(ctx, aggregateSlot, slot.ID, outbox.SlotRemoved, slotEvent{
			SlotID: slot.ID, DoctorID: slot.DoctorID, Date: slot.Date, Period: slot.Period,
			Discarded: &discarded,
		})
	})
}

// Availability computes the viewer's per-cell view of a doctor's slots over
// the rolling window.
func (s *Service) Availability(ctx context.Context, actor auth.Actor, doctorID uuid.UUID) (*Availability, error) {
	ok, err := s.slots.DoctorExists(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDoctorNotFound
	}
	dates := s.Window()
	states, err := s.slots.ListStates(ctx, doctorID, dates[0], dates[len(dates)-1].AddDays(1))
	if err != nil {
		return nil, err
	}
	return BuildAvailability(doctorID, actor.ID, dates, states), nil
}

// DoctorSlots lists a doctor's slots from today on with their effective
// status.
func (s *Service) DoctorSlots(ctx context.Context, actor auth.Actor, doctorID uuid.UUID) ([]LedgerEntry, error) {
	if !actor.IsAdmin() && !(actor.Is(auth.RoleDoctor) && actor.Owns(doctorID)) {
		return nil, ErrForbidden
	}
	states, err := s.slots.ListStates(ctx, doctorID, s.Today(), Date{})
	if err != nil {
		return nil, err
	}
	return Ledger(states), nil
}

// -- Booking engine --

// Book appends a booked appointment for the calling patient. The slot row is
// locked for the duration of the checks and the insert; the partial unique
// indexes on active bookings back the checks up.
func (s *Service) Book(ctx context.Context, actor auth.Actor, slotID uuid.UUID) (*Appointment, error) {
	if !actor.Is(auth.RolePatient) {
		return nil, ErrForbidden
	}

	var appt *Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		slot, err := s.slots.GetForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.Date.Before(s.Today()) {
			return fmt.Errorf("%w: slot on %s has already passed", ErrInvalidDate, slot.Date)
		}

		busy, err := s.appointments.HasBookedInPeriod(ctx, actor.ID, slot.Date, slot.Period)
		if err != nil {
			return err
		}
		if busy {
			return fmt.Errorf("%w: %s %s", ErrDoubleBooking, slot.Date, slot.Period)
		}

		latest, err := s.appointments.Latest(ctx, slot.ID)
		if err != nil {
			return err
		}
		if latest != nil && latest.Status == StatusBooked {
			return ErrSlotTaken
		}

		appt = &Appointment{
			PatientID: actor.ID,
			DoctorID:  slot.DoctorID,
			SlotID:    slot.ID,
			SlotDate:  slot.Date,
			Period:    slot.Period,
			Status:    StatusBooked,
		}
		if err := s.appointments.Create(ctx, appt); err != nil {
			return err
		}
		return s.record(ctx, aggregateAppointment, appt.ID, outbox.AppointmentBooked, newAppointmentEvent(appt, actor))
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// Cancel moves a booked appointment to cancelled. The owning patient, the
// appointment's doctor and admins may cancel.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, apptID uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, actor, apptID, StatusCancelled, outbox.AppointmentCancelled, func(a *Appointment) error {
		if actor.IsAdmin() || (actor.Is(auth.RolePatient) && actor.Owns(a.PatientID)) ||
			(actor.Is(auth.RoleDoctor) && actor.Owns(a.DoctorID)) {
			return nil
		}
		return ErrForbidden
	})
}

// Complete marks a booked appointment completed. Only the slot's doctor may
// do so, and only on the slot's date.
func (s *Service) Complete(ctx context.Context, actor auth.Actor, apptID uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, actor, apptID, StatusCompleted, outbox.AppointmentCompleted, func(a *Appointment) error {
		if !actor.Is(auth.RoleDoctor) || !actor.Owns(a.DoctorID) {
			return ErrForbidden
		}
		if today := s.Today(); !a.SlotDate.Equal(today) {
			return fmt.Errorf("%w: appointment is on %s, today is %s", ErrWrongDay, a.SlotDate, today)
		}
		return nil
	})
}

// transition applies booked -> to after check accepts the locked row.
func (s *Service) transition(ctx context.Context, actor auth.Actor, apptID uuid.UUID, to Status, eventType string, check func(*Appointment) error) (*Appointment, error) {
	var appt *Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetForUpdate(ctx, apptID)
		if err != nil {
			return err
		}
		if err := check(a); err != nil {
			return err
		}
		if a.Status != StatusBooked {
			return fmt.Errorf("%w: cannot move %s appointment to %s", ErrInvalidTransition, a.Status, to)
		}
		if err := s.appointments.UpdateStatus(ctx, a.ID, to); err != nil {
			return err
		}
		a.Status = to
		appt = a
		return s.record(ctx, aggregateAppointment, a.ID, eventType, newAppointmentEvent(a, actor))
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// -- Listings --

func ptr[T any](v T) *T { return &v }

// PatientUpcoming lists the patient's appointments dated today or later.
func (s *Service) PatientUpcoming(ctx context.Context, patientID uuid.UUID) ([]*AppointmentDetails, error) {
	return s.appointments.List(ctx, AppointmentFilter{PatientID: &patientID, From: ptr(s.Today())})
}

// PatientHistory lists completed appointments, most recent first. Patients
// see their own history; admins see anyone's.
func (s *Service) PatientHistory(ctx context.Context, actor auth.Actor, patientID uuid.UUID) ([]*AppointmentDetails, error) {
	if !actor.IsAdmin() && !actor.Owns(patientID) {
		return nil, ErrForbidden
	}
	return s.appointments.List(ctx, AppointmentFilter{
		PatientID:  &patientID,
		Status:     ptr(StatusCompleted),
		Descending: true,
	})
}

// DoctorUpcoming lists the doctor's active bookings from today on.
func (s *Service) DoctorUpcoming(ctx context.Context, doctorID uuid.UUID) ([]*AppointmentDetails, error) {
	return s.appointments.List(ctx, AppointmentFilter{
		DoctorID: &doctorID,
		Status:   ptr(StatusBooked),
		From:     ptr(s.Today()),
	})
}

// Upcoming lists every appointment dated today or later.
func (s *Service) Upcoming(ctx context.Context, limit int) ([]*AppointmentDetails, error) {
	return s.appointments.List(ctx, AppointmentFilter{From: ptr(s.Today()), Limit: limit})
}

// Past lists every appointment dated before today, most recent first.
func (s *Service) Past(ctx context.Context, limit int) ([]*AppointmentDetails, error) {
	return s.appointments.List(ctx, AppointmentFilter{Before: ptr(s.Today()), Descending: true, Limit: limit})
}
