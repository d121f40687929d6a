package outbox

import (
	"encoding/json"
	"fmt"
)

// Event types written by the booking core. The Kafka topic equals the event
// type.
const (
	SlotOpened           = "slot.opened"
	SlotRemoved          = "slot.removed"
	AppointmentBooked    = "appointment.booked"
	AppointmentCancelled = "appointment.cancelled"
	AppointmentCompleted = "appointment.completed"
)

// Event is the envelope written to outbox_events in the same transaction as
// the state change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// NewEvent marshals payload into an Event.
func NewEvent(aggregateType, aggregateID, eventType string, payload interface{}) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       b,
	}, nil
}
