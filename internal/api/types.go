package api

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/slot"
)

type RegisterDoctorRequest struct {
	Name          string `json:"name"`
	LicenseNumber string `json:"license_number"`
	Specialty     string `json:"specialty"`
	Email         string `json:"email"`
}

type CreateSlotRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // HH:MM
}

type GenerateSlotsRequest struct {
	FirstDay string   `json:"first_day"`
	Days     int      `json:"days"`
	Times    []string `json:"times"`
}

type CreateAppointmentRequest struct {
	SlotID      string `json:"slot_id"`
	VisitReason string `json:"visit_reason"`
}

// reasonAliases holds the other names clients send a cancellation reason under.
type reasonAliases struct {
	Motivo             string `json:"motivo,omitempty"`
	MotivoCancelamento string `json:"motivo_cancelamento,omitempty"`
}

func firstReason(reason string, a reasonAliases) string {
	for _, r := range []string{reason, a.MotivoCancelamento, a.Motivo} {
		if strings.TrimSpace(r) != "" {
			return r
		}
	}
	return ""
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
	reasonAliases
}

func (r CancelAppointmentRequest) reason() string { return firstReason(r.Reason, r.reasonAliases) }

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	reasonAliases
}

func (r UpdateStatusRequest) reason() string { return firstReason(r.Reason, r.reasonAliases) }

type UpdateNotesRequest struct {
	ClinicalNotes string `json:"clinical_notes"`
}

type MeResponse struct {
	CallerID string    `json:"caller_id"`
	Kind     string    `json:"kind"`
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
}

type DoctorResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	LicenseNumber string    `json:"license_number"`
	Specialty     string    `json:"specialty"`
	Email         *string   `json:"email,omitempty"`
}

type PatientResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email *string   `json:"email,omitempty"`
}

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Available bool      `json:"available"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID        `json:"id"`
	SlotID             *uuid.UUID       `json:"slot_id"`
	PatientID          uuid.UUID        `json:"patient_id"`
	Status             string           `json:"status"`
	VisitReason        string           `json:"visit_reason"`
	ClinicalNotes      *string          `json:"clinical_notes,omitempty"`
	CancellationReason *string          `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	Slot               *SlotResponse    `json:"slot,omitempty"`
	Doctor             *DoctorResponse  `json:"doctor,omitempty"`
	Patient            *PatientResponse `json:"patient,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toDoctorResponse(d *directory.Doctor) *DoctorResponse {
	if d == nil {
		return nil
	}
	return &DoctorResponse{
		ID:            d.ID,
		Name:          d.Name,
		LicenseNumber: d.LicenseNumber,
		Specialty:     d.Specialty,
		Email:         d.Email,
	}
}

func toPatientResponse(p *directory.Patient) *PatientResponse {
	if p == nil {
		return nil
	}
	return &PatientResponse{ID: p.ID, Name: p.Name, Email: p.Email}
}

func toSlotResponse(s *slot.Slot) *SlotResponse {
	if s == nil {
		return nil
	}
	return &SlotResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		Date:      slot.FormatDate(s.Date),
		Time:      s.Time.String(),
		Available: s.Available,
	}
}

func toSlotList(slots []slot.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for i := range slots {
		out = append(out, *toSlotResponse(&slots[i]))
	}
	return out
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		SlotID:             a.SlotID,
		PatientID:          a.PatientID,
		Status:             string(a.Status),
		VisitReason:        a.VisitReason,
		ClinicalNotes:      a.ClinicalNotes,
		CancellationReason: a.CancellationReason,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toDetailResponse(d *appointment.Detail) AppointmentResponse {
	resp := toAppointmentResponse(&d.Appointment)
	resp.Slot = toSlotResponse(d.Slot)
	resp.Doctor = toDoctorResponse(d.Doctor)
	resp.Patient = toPatientResponse(d.Patient)
	return resp
}
