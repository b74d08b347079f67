package slot

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/metrics"
)

// Registry owns availability slots and checks the no-past-instant rule on every write.
type Registry struct {
	repo    Repository
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.BookingMetrics
}

func NewRegistry(repo Repository, loc *time.Location, now func() time.Time, logger *zap.Logger) *Registry {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{repo: repo, loc: loc, now: now, logger: logging.OrNop(logger)}
}

// WithRepository returns a registry with the same clock and location bound to repo,
// typically a repository scoped to an open transaction.
func (r *Registry) WithRepository(repo Repository) *Registry {
	cp := *r
	cp.repo = repo
	return &cp
}

// WithMetrics returns a registry that counts created slots.
func (r *Registry) WithMetrics(m *metrics.BookingMetrics) *Registry {
	cp := *r
	cp.metrics = m
	return &cp
}

func (r *Registry) Location() *time.Location { return r.loc }

func (r *Registry) Now() time.Time { return r.now() }

func (r *Registry) validate(date time.Time, tod TimeOfDay) error {
	return ValidateNotPast(date, tod, r.loc, r.now())
}

func (r *Registry) CreateSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, tod TimeOfDay) (*Slot, error) {
	if doctorID == uuid.Nil {
		return nil, apperr.Validation("doctor id is required")
	}
	date = Date(date)
	if err := r.validate(date, tod); err != nil {
		return nil, err
	}
	s, err := r.repo.Create(ctx, Slot{DoctorID: doctorID, Date: date, Time: tod, Available: true})
	if err != nil {
		return nil, err
	}
	r.metrics.AddSlotsCreated(1)
	return s, nil
}

// GenerateSlots creates a slot for every (day, time) pair over days consecutive days from
// firstDay. Pairs that already exist or are already in the past are skipped.
func (r *Registry) GenerateSlots(ctx context.Context, doctorID uuid.UUID, firstDay time.Time, days int, times []TimeOfDay) ([]Slot, error) {
	if doctorID == uuid.Nil {
		return nil, apperr.Validation("doctor id is required")
	}
	if days <= 0 || days > 366 {
		return nil, apperr.Validation("days must be between 1 and 366")
	}
	if len(times) == 0 {
		return nil, apperr.Validation("at least one time is required")
	}

	var created []Slot
	start := Date(firstDay)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		for _, tod := range times {
			if err := r.validate(day, tod); err != nil {
				continue
			}
			s, err := r.repo.Create(ctx, Slot{DoctorID: doctorID, Date: day, Time: tod, Available: true})
			if err != nil {
				if apperr.KindOf(err) == apperr.KindConflict {
					continue
				}
				r.metrics.AddSlotsCreated(len(created))
				return created, err
			}
			created = append(created, *s)
		}
	}
	r.metrics.AddSlotsCreated(len(created))

	r.logger.Info("slots generated",
		zap.String("doctor_id", doctorID.String()),
		zap.Int("created", len(created)),
	)
	return created, nil
}

// Available yields available slots ordered by date then time. Each range over the
// sequence runs a fresh query; a query error is yielded once and ends the sequence.
func (r *Registry) Available(ctx context.Context, doctorID *uuid.UUID) iter.Seq2[Slot, error] {
	return func(yield func(Slot, error) bool) {
		slots, err := r.repo.ListAvailable(ctx, doctorID)
		if err != nil {
			yield(Slot{}, err)
			return
		}
		for _, s := range slots {
			if !yield(s, nil) {
				return
			}
		}
	}
}

func (r *Registry) ListAvailable(ctx context.Context, doctorID *uuid.UUID) ([]Slot, error) {
	result := []Slot{}
	for s, err := range r.Available(ctx, doctorID) {
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return r.repo.GetByID(ctx, id)
}

// TryClaim marks the slot unavailable. Of several concurrent callers exactly one wins;
// the rest get apperr.ErrSlotUnavailable.
func (r *Registry) TryClaim(ctx context.Context, id uuid.UUID) (*Slot, error) {
	current, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Available {
		return nil, apperr.ErrSlotUnavailable
	}
	if err := r.validate(current.Date, current.Time); err != nil {
		return nil, err
	}
	return r.repo.Claim(ctx, id)
}

func (r *Registry) Release(ctx context.Context, id uuid.UUID) (*Slot, error) {
	current, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.validate(current.Date, current.Time); err != nil {
		return nil, err
	}
	return r.repo.Release(ctx, id)
}
