package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/memstore"
	"github.com/hackgods/clinic-booking/internal/slot"
)

var now = time.Date(2030, 1, 10, 10, 30, 0, 0, time.UTC)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	store := memstore.New()
	registry := slot.NewRegistry(store.Slots(), time.UTC, func() time.Time { return now }, nil)
	svc := appointment.NewService(store, store.Appointments(), registry, store.Directory())

	return api.NewRouter(api.RouterConfig{
		Appointments: svc,
		Slots:        registry,
		Directory:    store.Directory(),
		Identity:     identity.NewResolver(store.Directory(), nil),
		Metrics:      http.NotFoundHandler(),
		Env:          "test",
		Version:      "dev",
	})
}

func do(t *testing.T, h http.Handler, method, path, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(api.HeaderCallerID, caller)
		req.Header.Set(api.HeaderCallerName, caller)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLiveness(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "ok", decode[api.LivenessResponse](t, rec).Status)
}

func TestReadinessWithoutDependencies(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[api.ReadinessResponse](t, rec)
	assert.Equal(t, "disabled", resp.Dependencies["postgres"])
	assert.Equal(t, "disabled", resp.Dependencies["redis"])
}

func TestCallerRequired(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[api.ErrorResponse](t, rec).Error)
}

func TestBookingFlowOverHTTP(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodPost, "/slots", "auth|doc", api.CreateSlotRequest{Date: "2030-01-11", Time: "09:00"})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/doctors/register", "auth|doc", api.RegisterDoctorRequest{
		Name: "Ana Souza", LicenseNumber: "CRM-1001", Specialty: "Cardiology", Email: "ana@clinic.test",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doctor := decode[api.DoctorResponse](t, rec)

	rec = do(t, h, http.MethodGet, "/me", "auth|doc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "doctor", decode[api.MeResponse](t, rec).Kind)

	rec = do(t, h, http.MethodPost, "/slots", "auth|doc", api.CreateSlotRequest{Date: "2030-01-11", Time: "09:00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[api.SlotResponse](t, rec)
	assert.True(t, created.Available)

	rec = do(t, h, http.MethodPost, "/slots", "auth|doc", api.CreateSlotRequest{Date: "2030-01-11", Time: "09:00"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/slots", "auth|doc", api.CreateSlotRequest{Date: "2030-01-09", Time: "09:00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/slots?doctor_id="+doctor.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.SlotResponse](t, rec), 1)

	rec = do(t, h, http.MethodPost, "/appointments", "auth|paula", api.CreateAppointmentRequest{SlotID: created.ID.String(), VisitReason: "checkup"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booked := decode[api.AppointmentResponse](t, rec)
	assert.Equal(t, "PENDING", booked.Status)
	require.NotNil(t, booked.Doctor)
	assert.Equal(t, "Ana Souza", booked.Doctor.Name)

	rec = do(t, h, http.MethodPost, "/appointments", "auth|otto", api.CreateAppointmentRequest{SlotID: created.ID.String()})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_unavailable", decode[api.ErrorResponse](t, rec).Error)

	path := "/appointments/" + booked.ID.String()

	rec = do(t, h, http.MethodGet, path, "auth|otto", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPatch, path+"/status", "auth|paula", api.UpdateStatusRequest{Status: "SCHEDULED"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPatch, path+"/status", "auth|doc", api.UpdateStatusRequest{Status: "agendada"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "SCHEDULED", decode[api.AppointmentResponse](t, rec).Status)

	rec = do(t, h, http.MethodPatch, path+"/notes", "auth|doc", api.UpdateNotesRequest{ClinicalNotes: "BP 12/8"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, path+"/cancel", "auth|paula", api.CancelAppointmentRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_reason", decode[api.ErrorResponse](t, rec).Error)

	rec = do(t, h, http.MethodPost, path+"/cancel", "auth|paula", api.CancelAppointmentRequest{Reason: "travelling"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decode[api.AppointmentResponse](t, rec)
	assert.Equal(t, "CANCELLED", cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "travelling", *cancelled.CancellationReason)

	rec = do(t, h, http.MethodPatch, path+"/status", "auth|doc", api.UpdateStatusRequest{Status: "FINALIZED"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[api.ErrorResponse](t, rec).Error)

	rec = do(t, h, http.MethodGet, "/appointments", "auth|doc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.AppointmentResponse](t, rec), 1)

	// the cancelled slot is bookable again
	rec = do(t, h, http.MethodPost, "/appointments", "auth|otto", api.CreateAppointmentRequest{SlotID: created.ID.String()})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestReasonAliasesOverHTTP(t *testing.T) {
	h := newServer(t)
	rec := do(t, h, http.MethodPost, "/doctors/register", "auth|doc", api.RegisterDoctorRequest{
		Name: "Ana", LicenseNumber: "CRM-1", Specialty: "GP",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	book := func(tod string) string {
		rec := do(t, h, http.MethodPost, "/slots", "auth|doc", api.CreateSlotRequest{Date: "2030-01-11", Time: tod})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		sl := decode[api.SlotResponse](t, rec)
		rec = do(t, h, http.MethodPost, "/appointments", "auth|paula", api.CreateAppointmentRequest{SlotID: sl.ID.String()})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return "/appointments/" + decode[api.AppointmentResponse](t, rec).ID.String()
	}

	first := book("09:00")
	rec = do(t, h, http.MethodPost, first+"/cancel", "auth|paula", map[string]string{"motivo_cancelamento": "viagem"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decode[api.AppointmentResponse](t, rec)
	assert.Equal(t, "CANCELLED", cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "viagem", *cancelled.CancellationReason)

	second := book("10:00")
	rec = do(t, h, http.MethodPatch, second+"/status", "auth|doc", map[string]string{"status": "REJECTED", "motivo": "agenda cheia"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rejected := decode[api.AppointmentResponse](t, rec)
	require.NotNil(t, rejected.CancellationReason)
	assert.Equal(t, "agenda cheia", *rejected.CancellationReason)

	third := book("11:00")
	rec = do(t, h, http.MethodPost, third+"/cancel", "auth|paula", map[string]string{"reason": "x", "comment": "y"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateSlotsOverHTTP(t *testing.T) {
	h := newServer(t)
	rec := do(t, h, http.MethodPost, "/doctors/register", "auth|doc", api.RegisterDoctorRequest{
		Name: "Ana", LicenseNumber: "CRM-1", Specialty: "GP",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/slots/generate", "auth|doc", api.GenerateSlotsRequest{
		Days:  2,
		Times: []string{"08:00", "14:00"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	// today 08:00 is already past
	assert.Len(t, decode[[]api.SlotResponse](t, rec), 3)

	rec = do(t, h, http.MethodPost, "/slots/generate", "auth|doc", api.GenerateSlotsRequest{Days: 1, Times: []string{"8am"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBadInputs(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodGet, "/appointments/not-a-uuid", "auth|paula", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/appointments", "auth|paula", map[string]string{"slot_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/slots?doctor_id=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPatch, "/appointments/"+"00000000-0000-0000-0000-000000000001/status", "auth|paula", api.UpdateStatusRequest{Status: "ARCHIVED"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
