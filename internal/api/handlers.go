package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/slot"
)

type Handler struct {
	appointments *appointment.Service
	slots        *slot.Registry
	directory    directory.Repository
	identity     *identity.Resolver
	logger       *zap.Logger
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	actor, err := h.identity.Resolve(r.Context(), caller)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	resp := MeResponse{CallerID: caller.ID, Kind: string(actor.Kind), ID: actor.ID}
	if actor.IsDoctor() {
		if d, err := h.directory.GetDoctorByID(r.Context(), actor.ID); err == nil {
			resp.Name = d.Name
		}
	} else if p, err := h.directory.GetPatientByID(r.Context(), actor.ID); err == nil {
		resp.Name = p.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) registerDoctor(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req RegisterDoctorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	d, err := h.identity.RegisterDoctor(r.Context(), caller, identity.RegisterDoctorInput{
		Name:          req.Name,
		LicenseNumber: req.LicenseNumber,
		Specialty:     req.Specialty,
		Email:         req.Email,
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDoctorResponse(d))
}

func (h *Handler) getDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	d, err := h.directory.GetDoctorByID(r.Context(), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDoctorResponse(d))
}

func (h *Handler) createSlot(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.requireDoctor(w, r)
	if !ok {
		return
	}
	var req CreateSlotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	date, err := slot.ParseDate(req.Date)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	tod, err := slot.ParseTimeOfDay(req.Time)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	s, err := h.slots.CreateSlot(r.Context(), doctor.ID, date, tod)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlotResponse(s))
}

func (h *Handler) generateSlots(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.requireDoctor(w, r)
	if !ok {
		return
	}
	var req GenerateSlotsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	firstDay := slot.Date(h.slots.Now().In(h.slots.Location()))
	if req.FirstDay != "" {
		d, err := slot.ParseDate(req.FirstDay)
		if err != nil {
			h.writeAppError(w, r, err)
			return
		}
		firstDay = d
	}
	times := make([]slot.TimeOfDay, 0, len(req.Times))
	for _, raw := range req.Times {
		tod, err := slot.ParseTimeOfDay(raw)
		if err != nil {
			h.writeAppError(w, r, err)
			return
		}
		times = append(times, tod)
	}

	created, err := h.slots.GenerateSlots(r.Context(), doctor.ID, firstDay, req.Days, times)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlotList(created))
}

func (h *Handler) listSlots(w http.ResponseWriter, r *http.Request) {
	var doctorID *uuid.UUID
	if raw := r.URL.Query().Get("doctor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, string(apperr.KindValidation), "doctor_id must be a valid UUID")
			return
		}
		doctorID = &id
	}

	slots, err := h.slots.ListAvailable(r.Context(), doctorID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotList(slots))
}

func (h *Handler) createAppointment(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req CreateAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	slotID, err := uuid.Parse(req.SlotID)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.KindValidation), "slot_id must be a valid UUID")
		return
	}

	patient, err := h.identity.ResolveCallerAsPatient(r.Context(), caller)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	detail, err := h.appointments.Book(r.Context(), patient.ID, slotID, req.VisitReason)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDetailResponse(detail))
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	list, err := h.appointments.ListForActor(r.Context(), actor)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	resp := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toDetailResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.appointments.GetForActor(r.Context(), actor, id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponse(detail))
}

func (h *Handler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req CancelAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.appointments.CancelAs(r.Context(), actor, id, req.reason())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	to, err := appointment.ParseStatus(req.Status)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	updated, err := h.appointments.TransitionAs(r.Context(), actor, id, to, req.reason())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
}

func (h *Handler) updateNotes(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.requireDoctor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateNotesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.appointments.UpdateNotes(r.Context(), doctor.ID, id, req.ClinicalNotes)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
}

func requireCaller(w http.ResponseWriter, r *http.Request) (identity.Caller, bool) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", HeaderCallerID+" header is required")
		return identity.Caller{}, false
	}
	return caller, true
}

func (h *Handler) requireActor(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return identity.Actor{}, false
	}
	actor, err := h.identity.Resolve(r.Context(), caller)
	if err != nil {
		h.writeAppError(w, r, err)
		return identity.Actor{}, false
	}
	return actor, true
}

func (h *Handler) requireDoctor(w http.ResponseWriter, r *http.Request) (*directory.Doctor, bool) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return nil, false
	}
	d, err := h.identity.ResolveCallerAsDoctor(r.Context(), caller)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			err = apperr.Forbidden("only registered doctors can do this")
		}
		h.writeAppError(w, r, err)
		return nil, false
	}
	return d, true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.KindValidation), name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// decodeJSON treats an empty body as an empty object.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, string(apperr.KindValidation), "could not parse JSON: "+err.Error())
		return false
	}
	return true
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindMissingReason:
		return http.StatusBadRequest
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindSlotUnavailable, apperr.KindConflict, apperr.KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, status, "internal_error", "internal server error")
		return
	}
	writeError(w, status, string(kind), strings.TrimSpace(apperr.Message(err)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
