// Package notify delivers the "appointment booked" side effect. Delivery is best effort:
// callers log a failed Notify and carry on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/logging"
)

// Notification describes a freshly booked appointment.
type Notification struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	DoctorName    string    `json:"doctor_name"`
	DoctorEmail   string    `json:"doctor_email,omitempty"`
	PatientName   string    `json:"patient_name"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, n Notification) error

func (f Func) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

type multi []Notifier

// Multi fans a notification out to every notifier and joins their errors.
func Multi(notifiers ...Notifier) Notifier {
	var m multi
	for _, n := range notifiers {
		if n != nil {
			m = append(m, n)
		}
	}
	return m
}

func (m multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Async runs the wrapped notifier on its own goroutine with a detached context, so the
// caller never waits on delivery. Errors and panics are logged.
type Async struct {
	next    Notifier
	timeout time.Duration
	logger  *zap.Logger
}

func NewAsync(next Notifier, timeout time.Duration, logger *zap.Logger) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, timeout: timeout, logger: logging.OrNop(logger)}
}

func (a *Async) Notify(ctx context.Context, n Notification) error {
	detached := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(detached, a.timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("notifier panicked",
					zap.String("appointment_id", n.AppointmentID.String()),
					zap.Any("panic", r),
				)
			}
		}()

		if err := a.next.Notify(ctx, n); err != nil {
			a.logger.Warn("appointment notification failed",
				zap.String("appointment_id", n.AppointmentID.String()),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Message is the human readable text used by the log and e-mail notifiers.
func Message(n Notification) string {
	return fmt.Sprintf("New appointment: Dr(a). %s with %s on %s at %s", n.DoctorName, n.PatientName, n.Date, n.Time)
}
