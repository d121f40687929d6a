package booking

import "errors"

// Validation.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidDate   = errors.New("date is outside the booking window")
	ErrInvalidPeriod = errors.New("unknown time period")
	ErrWrongDay      = errors.New("appointment can only be completed on its own date")
)

// Authorization.
var ErrForbidden = errors.New("forbidden")

// Conflict.
var (
	ErrDuplicateSlot     = errors.New("slot already exists for this doctor, date and period")
	ErrDoubleBooking     = errors.New("patient already has a booking in this period")
	ErrSlotTaken         = errors.New("slot is already taken")
	ErrSlotBooked        = errors.New("slot is booked")
	ErrInvalidTransition = errors.New("appointment is not in booked state")
)

// Not found.
var (
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
)

func isValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidPeriod) || errors.Is(err, ErrWrongDay)
}

func isConflict(err error) bool {
	return errors.Is(err, ErrDuplicateSlot) || errors.Is(err, ErrDoubleBooking) ||
		errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrSlotBooked) ||
		errors.Is(err, ErrInvalidTransition)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrSlotNotFound) || errors.Is(err, ErrAppointmentNotFound) ||
		errors.Is(err, ErrDoctorNotFound)
}
