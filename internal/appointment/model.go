package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/slot"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentNotesUpdated  = "APPOINTMENT_NOTES_UPDATED"
)

type Appointment struct {
	ID                 uuid.UUID
	SlotID             *uuid.UUID
	PatientID          uuid.UUID
	Status             Status
	VisitReason        string
	ClinicalNotes      *string
	CancellationReason *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Detail is an appointment with its slot, patient and doctor loaded.
type Detail struct {
	Appointment
	Slot    *slot.Slot
	Patient *directory.Patient
	Doctor  *directory.Doctor
}
