package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/rafaelminatto1/fisioflow-scheduling/internal/scheduling"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Therapist struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment is the persisted record: the engine's scheduling unit plus
// row timestamps.
type Appointment struct {
	scheduling.Appointment
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
