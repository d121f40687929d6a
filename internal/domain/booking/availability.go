package booking

import (
	"github.com/google/uuid"
)

// ViewStatus is the state of an availability cell as seen by one viewer.
type ViewStatus string

const (
	ViewOpen         ViewStatus = "OPEN"
	ViewCancelled    ViewStatus = "CANCELLED"
	ViewBooked       ViewStatus = "BOOKED"
	ViewCompleted    ViewStatus = "COMPLETED"
	ViewNotAvailable ViewStatus = "NOT_AVAILABLE"
	ViewNotOffered   ViewStatus = "NOT_OFFERED"
)

// CellStatus derives the status of an offered slot for viewer from the
// slot's globally latest appointment row.
func CellStatus(latest *Appointment, viewer uuid.UUID) ViewStatus {
	if latest == nil {
		return ViewOpen
	}
	mine := latest.PatientID == viewer
	switch {
	case latest.Status == StatusCancelled && mine:
		return ViewCancelled
	case latest.Status == StatusCancelled:
		return ViewOpen
	case !mine:
		return ViewNotAvailable
	case latest.Status == StatusBooked:
		return ViewBooked
	case latest.Status == StatusCompleted:
		return ViewCompleted
	default:
		return ViewNotAvailable
	}
}

// EffectiveStatus is the viewer independent state of a slot, used on the
// doctor's own ledger.
func EffectiveStatus(latest *Appointment) ViewStatus {
	if latest == nil {
		return ViewOpen
	}
	switch latest.Status {
	case StatusBooked:
		return ViewBooked
	case StatusCompleted:
		return ViewCompleted
	default:
		return ViewCancelled
	}
}

// Removable reports whether a slot may be deleted: nothing in its history
// is booked or completed.
func Removable(st SlotState) bool {
	if st.Held {
		return false
	}
	return st.Latest == nil || st.Latest.Status == StatusCancelled
}

type Cell struct {
	Period Period     `json:"period"`
	Hours  string     `json:"hours"`
	Status ViewStatus `json:"status"`
	SlotID *uuid.UUID `json:"slot_id,omitempty"`
}

type Day struct {
	Date  Date   `json:"date"`
	Cells []Cell `json:"cells"`
}

type Availability struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Days     []Day     `json:"days"`
}

// Window returns the n consecutive dates starting at today.
func Window(today Date, n int) []Date {
	dates := make([]Date, 0, n)
	for i := 0; i < n; i++ {
		dates = append(dates, today.AddDays(i))
	}
	return dates
}

type cellKey struct {
	date   string
	period Period
}

// BuildAvailability lays out one cell per date and period. Cells without a
// slot are NOT_OFFERED. States outside dates are ignored.
func BuildAvailability(doctorID, viewer uuid.UUID, dates []Date, states []SlotState) *Availability {
	byCell := make(map[cellKey]SlotState, len(states))
	for _, st := range states {
		byCell[cellKey{st.Slot.Date.String(), st.Slot.Period}] = st
	}

	days := make([]Day, 0, len(dates))
	for _, d := range dates {
		cells := make([]Cell, 0, len(Periods))
		for _, p := range Periods {
			cell := Cell{Period: p, Hours: p.Hours(), Status: ViewNotOffered}
			if st, ok := byCell[cellKey{d.String(), p}]; ok {
				id := st.Slot.ID
				cell.SlotID = &id
				cell.Status = CellStatus(st.Latest, viewer)
			}
			cells = append(cells, cell)
		}
		days = append(days, Day{Date: d, Cells: cells})
	}
	return &Availability{DoctorID: doctorID, Days: days}
}

// Ledger converts slot states into the doctor facing listing.
func Ledger(states []SlotState) []LedgerEntry {
	entries := make([]LedgerEntry, 0, len(states))
	for _, st := range states {
		e := LedgerEntry{
			Slot:      st.Slot,
			Hours:     st.Slot.Period.Hours(),
			Status:    EffectiveStatus(st.Latest),
			Removable: Removable(st),
		}
		if st.Latest != nil {
			apptID, patientID := st.Latest.ID, st.Latest.PatientID
			e.AppointmentID = &apptID
			e.PatientID = &patientID
		}
		entries = append(entries, e)
	}
	return entries
}
