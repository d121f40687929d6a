package booking

import (
	"time"

	"github.com/google/uuid"
)

// Period is the coarse part of the day a slot covers.
type Period string

const (
	PeriodMorning Period = "morning"
	PeriodEvening Period = "evening"
)

// Periods lists every period in display order.
var Periods = []Period{PeriodMorning, PeriodEvening}

var periodHours = map[Period]string{
	PeriodMorning: "08:00-12:00",
	PeriodEvening: "16:00-21:00",
}

func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if _, ok := periodHours[p]; !ok {
		return "", ErrInvalidPeriod
	}
	return p, nil
}

// Hours is the display label of the period's clock range.
func (p Period) Hours() string { return periodHours[p] }

type Status string

const (
	StatusBooked    Status = "booked"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Slot struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      Date      `json:"date"`
	Period    Period    `json:"period"`
	CreatedAt time.Time `json:"created_at"`
}

// Appointment is one booking attempt on a slot. SlotDate and Period mirror
// the slot and, like DoctorID, are copied from it when the row is inserted.
type Appointment struct {
	ID        uuid.UUID `json:"id"`
	Seq       int64     `json:"-"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	SlotID    uuid.UUID `json:"slot_id"`
	SlotDate  Date      `json:"slot_date"`
	Period    Period    `json:"period"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// SlotState pairs a slot with its most recently created appointment row,
// which is nil when the slot was never booked. Held is set when any row of
// the slot's history is booked or completed.
type SlotState struct {
	Slot   *Slot
	Latest *Appointment
	Held   bool
}

// AppointmentDetails is the listing read model.
type AppointmentDetails struct {
	Appointment
	PatientName    string  `json:"patient_name"`
	DoctorName     string  `json:"doctor_name"`
	DepartmentName *string `json:"department_name,omitempty"`
}

// AppointmentFilter selects appointments for listings. Nil fields do not
// filter. Results are ordered by slot date then period, newest first when
// Descending is set.
type AppointmentFilter struct {
	PatientID  *uuid.UUID
	DoctorID   *uuid.UUID
	Status     *Status
	From       *Date // slot_date >= From
	Before     *Date // slot_date < Before
	Descending bool
	Limit      int
}

type OpenSlotRequest struct {
	DoctorID *uuid.UUID `json:"doctor_id"`
	Date     string     `json:"date"`
	Period   string     `json:"period"`
}

// LedgerEntry is a slot as shown on its doctor's availability page.
type LedgerEntry struct {
	*Slot
	Hours         string     `json:"hours"`
	Status        ViewStatus `json:"status"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	PatientID     *uuid.UUID `json:"patient_id,omitempty"`
	Removable     bool       `json:"removable"`
}
