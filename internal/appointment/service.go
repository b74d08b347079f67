package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/slot"
)

var tracer = otel.Tracer("clinic.internal.appointment")

type Service struct {
	uow       UnitOfWork
	repo      Repository
	slots     *slot.Registry
	directory directory.Repository

	locker   redisclient.Locker
	notifier notify.Notifier
	metrics  *metrics.BookingMetrics
	tracer   trace.Tracer
	logger   *zap.Logger
}

type Option func(*Service)

// WithLocker puts a distributed per-slot lock in front of the booking transaction.
func WithLocker(l redisclient.Locker) Option { return func(s *Service) { s.locker = l } }

func WithNotifier(n notify.Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithMetrics(m *metrics.BookingMetrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = logging.OrNop(l) } }

func WithTracer(t trace.Tracer) Option { return func(s *Service) { s.tracer = t } }

// NewService wires the lifecycle engine. repo is used outside units of work (reads, audit
// events); uow supplies transaction-bound repositories for every write of slot or status.
func NewService(uow UnitOfWork, repo Repository, slots *slot.Registry, dir directory.Repository, opts ...Option) *Service {
	s := &Service{
		uow:       uow,
		repo:      repo,
		slots:     slots,
		directory: dir,
		notifier:  notify.NewLogNotifier(nil),
		tracer:    tracer,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book claims the slot and creates a PENDING appointment in one unit of work. Losing
// the race for the slot fails with apperr.ErrSlotUnavailable and leaves nothing behind.
func (s *Service) Book(ctx context.Context, patientID, slotID uuid.UUID, visitReason string) (*Detail, error) {
	ctx, span := s.tracer.Start(ctx, "appointment.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.slot_id", slotID.String()),
		attribute.String("clinic.patient_id", patientID.String()),
	)

	start := time.Now()
	detail, err := s.book(ctx, patientID, slotID, strings.TrimSpace(visitReason))
	s.metrics.ObserveBooking(resultLabel(err), time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		return nil, err
	}

	s.logger.Info("appointment booked",
		zap.String("appointment_id", detail.ID.String()),
		zap.String("slot_id", slotID.String()),
		zap.String("patient_id", patientID.String()),
	)

	s.logEvent(ctx, detail.ID, EventAppointmentCreated, map[string]any{
		"slot_id":    slotID.String(),
		"patient_id": patientID.String(),
		"date":       slot.FormatDate(detail.Slot.Date),
		"time":       detail.Slot.Time.String(),
	})
	s.notify(ctx, detail)

	return detail, nil
}

func (s *Service) book(ctx context.Context, patientID, slotID uuid.UUID, visitReason string) (*Detail, error) {
	patient, err := s.directory.GetPatientByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	var (
		claimed *slot.Slot
		created *Appointment
	)
	run := func(ctx context.Context) error {
		return s.uow.Do(ctx, func(ctx context.Context, tx Tx) error {
			sl, err := s.slots.WithRepository(tx.Slots).TryClaim(ctx, slotID)
			if err != nil {
				return err
			}
			sid := sl.ID
			appt, err := tx.Appointments.Create(ctx, Appointment{
				SlotID:      &sid,
				PatientID:   patient.ID,
				Status:      StatusPending,
				VisitReason: visitReason,
			})
			if err != nil {
				return err
			}
			claimed, created = sl, appt
			return nil
		})
	}

	if s.locker != nil {
		ran := false
		err = s.locker.WithSlotLock(ctx, slotID, func(ctx context.Context) error {
			ran = true
			return run(ctx)
		})
		if err != nil && !ran {
			// The lock is advisory; the claim inside the unit of work decides.
			s.logger.Warn("slot lock unavailable, booking through claim only",
				zap.String("slot_id", slotID.String()),
				zap.Bool("contended", errors.Is(err, redisclient.ErrLockNotAcquired)),
				zap.Error(err),
			)
			err = run(ctx)
		}
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, err
	}

	detail := &Detail{Appointment: *created, Slot: claimed, Patient: patient}
	if doctor, err := s.directory.GetDoctorByID(ctx, claimed.DoctorID); err == nil {
		detail.Doctor = doctor
	} else {
		s.logger.Warn("load doctor for booked slot", zap.String("slot_id", slotID.String()), zap.Error(err))
	}
	return detail, nil
}

// notify runs after commit; its failure never reaches the caller.
func (s *Service) notify(ctx context.Context, d *Detail) {
	if s.notifier == nil {
		return
	}
	n := notify.Notification{
		AppointmentID: d.ID,
		Date:          slot.FormatDate(d.Slot.Date),
		Time:          d.Slot.Time.String(),
	}
	if d.Patient != nil {
		n.PatientName = d.Patient.Name
	}
	if d.Doctor != nil {
		n.DoctorName = d.Doctor.Name
		if d.Doctor.Email != nil {
			n.DoctorEmail = *d.Doctor.Email
		}
	}

	defer func() {
		if r := recover(); r != nil {
			s.metrics.ObserveNotification(false)
			s.logger.Error("appointment notifier panicked",
				zap.String("appointment_id", d.ID.String()),
				zap.Any("panic", r),
			)
		}
	}()

	err := s.notifier.Notify(ctx, n)
	s.metrics.ObserveNotification(err == nil)
	if err != nil {
		s.logger.Warn("appointment notification failed",
			zap.String("appointment_id", d.ID.String()),
			zap.Error(err),
		)
	}
}

// Transition moves an appointment along the status whitelist. Checks run in order:
// known target status, reason for REJECTED/CANCELLED, existence, whitelist.
// Entering REJECTED or CANCELLED reopens the slot in the same unit of work unless the
// slot is already in the past.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status, reason string) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointment.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.appointment_id", id.String()),
		attribute.String("clinic.to_status", string(to)),
	)

	updated, from, err := s.transition(ctx, id, to, strings.TrimSpace(reason))
	s.metrics.ObserveTransition(string(to), resultLabel(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		return nil, err
	}

	s.logger.Info("appointment status changed",
		zap.String("appointment_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	payload := map[string]any{"from": from, "to": to}
	if updated.CancellationReason != nil && to.RequiresReason() {
		payload["reason"] = *updated.CancellationReason
	}
	s.logEvent(ctx, id, EventAppointmentStatusChanged, payload)

	return updated, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, reason string) (*Appointment, Status, error) {
	if !to.Valid() {
		return nil, "", apperr.Validation("invalid status %q", to)
	}
	if to.RequiresReason() && reason == "" {
		return nil, "", apperr.ErrMissingReason
	}

	var (
		updated *Appointment
		from    Status
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.Appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		from = current.Status
		if !from.CanTransitionTo(to) {
			return apperr.New(apperr.KindInvalidTransition, "cannot move appointment from %s to %s", from, to)
		}

		var reasonArg *string
		if reason != "" && to.RequiresReason() {
			reasonArg = &reason
		}
		updated, err = tx.Appointments.UpdateStatus(ctx, id, from, to, reasonArg)
		if err != nil {
			return err
		}

		if to.RequiresReason() && current.SlotID != nil {
			return s.releaseSlot(ctx, tx, *current.SlotID)
		}
		return nil
	})
	if err != nil {
		return nil, from, err
	}
	return updated, from, nil
}

func (s *Service) releaseSlot(ctx context.Context, tx Tx, slotID uuid.UUID) error {
	_, err := s.slots.WithRepository(tx.Slots).Release(ctx, slotID)
	if err == nil {
		return nil
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		s.logger.Info("slot left closed, it is already in the past",
			zap.String("slot_id", slotID.String()),
		)
		return nil
	case apperr.KindNotFound:
		s.logger.Warn("slot of appointment is gone", zap.String("slot_id", slotID.String()))
		return nil
	default:
		return err
	}
}

// Cancel is Transition to CANCELLED.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	return s.Transition(ctx, id, StatusCancelled, reason)
}

// TransitionAs applies the caller's permissions before Transition: the doctor owning
// the slot may make any whitelisted change, the booking patient may only cancel.
func (s *Service) TransitionAs(ctx context.Context, actor identity.Actor, id uuid.UUID, to Status, reason string) (*Appointment, error) {
	if _, err := s.GetForActor(ctx, actor, id); err != nil {
		return nil, err
	}
	if actor.IsPatient() && to != StatusCancelled {
		return nil, apperr.Forbidden("patients can only cancel their appointments")
	}
	return s.Transition(ctx, id, to, reason)
}

func (s *Service) CancelAs(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*Appointment, error) {
	return s.TransitionAs(ctx, actor, id, StatusCancelled, reason)
}

// UpdateNotes records the doctor's clinical notes. Status and slot are untouched.
func (s *Service) UpdateNotes(ctx context.Context, doctorID, id uuid.UUID, notes string) (*Appointment, error) {
	actor := identity.Actor{Kind: identity.ActorDoctor, ID: doctorID}
	if _, err := s.GetForActor(ctx, actor, id); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateNotes(ctx, id, notes)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, id, EventAppointmentNotesUpdated, map[string]any{"doctor_id": doctorID.String()})
	return updated, nil
}

// Get returns a hydrated appointment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, *a, map[uuid.UUID]*directory.Doctor{})
}

// GetForActor hides appointments the actor is not part of behind NotFound.
func (s *Service) GetForActor(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Detail, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibleTo(actor, d) {
		return nil, apperr.NotFound("appointment not found")
	}
	return d, nil
}

func visibleTo(actor identity.Actor, d *Detail) bool {
	switch actor.Kind {
	case identity.ActorDoctor:
		return d.Slot != nil && d.Slot.DoctorID == actor.ID
	case identity.ActorPatient:
		return d.PatientID == actor.ID
	}
	return false
}

// ListForActor returns a doctor's appointments by slot date then time, or a patient's
// own appointments newest first.
func (s *Service) ListForActor(ctx context.Context, actor identity.Actor) ([]Detail, error) {
	var (
		list []Appointment
		err  error
	)
	switch actor.Kind {
	case identity.ActorDoctor:
		list, err = s.repo.ListByDoctor(ctx, actor.ID)
	case identity.ActorPatient:
		list, err = s.repo.ListByPatient(ctx, actor.ID)
	default:
		return nil, apperr.Validation("unknown caller kind %q", actor.Kind)
	}
	if err != nil {
		return nil, err
	}

	doctors := map[uuid.UUID]*directory.Doctor{}
	result := make([]Detail, 0, len(list))
	for _, a := range list {
		d, err := s.hydrate(ctx, a, doctors)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, nil
}

func (s *Service) hydrate(ctx context.Context, a Appointment, doctors map[uuid.UUID]*directory.Doctor) (*Detail, error) {
	d := &Detail{Appointment: a}

	if a.SlotID != nil {
		sl, err := s.slots.Get(ctx, *a.SlotID)
		if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
			return nil, err
		}
		d.Slot = sl
	}
	if d.Slot != nil {
		doc, ok := doctors[d.Slot.DoctorID]
		if !ok {
			var err error
			doc, err = s.directory.GetDoctorByID(ctx, d.Slot.DoctorID)
			if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
				return nil, err
			}
			doctors[d.Slot.DoctorID] = doc
		}
		d.Doctor = doc
	}

	p, err := s.directory.GetPatientByID(ctx, a.PatientID)
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		return nil, err
	}
	d.Patient = p
	return d, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("insert event log",
			zap.String("event_type", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := apperr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
