// Package identity maps an authenticated caller onto directory records.
package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/logging"
)

// Caller is the identity asserted by the upstream authenticator.
type Caller struct {
	ID    string
	Name  string
	Email string
}

type ActorKind string

const (
	ActorDoctor  ActorKind = "doctor"
	ActorPatient ActorKind = "patient"
)

// Actor is a caller resolved to exactly one directory record.
type Actor struct {
	Kind     ActorKind
	CallerID string
	ID       uuid.UUID
}

func (a Actor) IsDoctor() bool  { return a.Kind == ActorDoctor }
func (a Actor) IsPatient() bool { return a.Kind == ActorPatient }

type Resolver struct {
	repo   directory.Repository
	logger *zap.Logger
}

func NewResolver(repo directory.Repository, logger *zap.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logging.OrNop(logger)}
}

// ResolveCallerAsPatient is an idempotent get-or-create. A first-time caller gets a
// minimal record whose tax id is directory.PlaceholderTaxID(caller.ID) until the
// patient completes the profile.
func (r *Resolver) ResolveCallerAsPatient(ctx context.Context, caller Caller) (*directory.Patient, error) {
	if strings.TrimSpace(caller.ID) == "" {
		return nil, apperr.Validation("caller id is required")
	}

	name := strings.TrimSpace(caller.Name)
	if name == "" {
		name = caller.ID
	}
	defaults := directory.Patient{
		Name:  name,
		TaxID: directory.PlaceholderTaxID(caller.ID),
	}
	if email := strings.TrimSpace(caller.Email); email != "" {
		defaults.Email = &email
	}

	p, created, err := r.repo.GetOrCreatePatient(ctx, caller.ID, defaults)
	if err != nil {
		return nil, err
	}
	if created {
		r.logger.Info("patient record created for caller",
			zap.String("caller_id", caller.ID),
			zap.String("patient_id", p.ID.String()),
		)
	}
	return p, nil
}

func (r *Resolver) ResolveCallerAsDoctor(ctx context.Context, caller Caller) (*directory.Doctor, error) {
	if strings.TrimSpace(caller.ID) == "" {
		return nil, apperr.Validation("caller id is required")
	}
	return r.repo.GetDoctorByCallerID(ctx, caller.ID)
}

// Resolve prefers the doctor record; callers without one are treated as patients.
func (r *Resolver) Resolve(ctx context.Context, caller Caller) (Actor, error) {
	d, err := r.ResolveCallerAsDoctor(ctx, caller)
	if err == nil {
		return Actor{Kind: ActorDoctor, CallerID: caller.ID, ID: d.ID}, nil
	}
	if apperr.KindOf(err) != apperr.KindNotFound {
		return Actor{}, err
	}

	p, err := r.ResolveCallerAsPatient(ctx, caller)
	if err != nil {
		return Actor{}, err
	}
	return Actor{Kind: ActorPatient, CallerID: caller.ID, ID: p.ID}, nil
}

type RegisterDoctorInput struct {
	Name          string
	LicenseNumber string
	Specialty     string
	Email         string
}

// RegisterDoctor links caller to the doctor record holding the license number,
// creating the record when the license is unknown.
func (r *Resolver) RegisterDoctor(ctx context.Context, caller Caller, in RegisterDoctorInput) (*directory.Doctor, error) {
	if strings.TrimSpace(caller.ID) == "" {
		return nil, apperr.Validation("caller id is required")
	}
	name := strings.TrimSpace(in.Name)
	license := strings.TrimSpace(in.LicenseNumber)
	specialty := strings.TrimSpace(in.Specialty)
	if name == "" || license == "" || specialty == "" {
		return nil, apperr.Validation("name, license_number and specialty are required")
	}
	var email *string
	if e := strings.TrimSpace(in.Email); e != "" {
		email = &e
	}

	if _, err := r.repo.GetDoctorByCallerID(ctx, caller.ID); err == nil {
		return nil, apperr.Conflict("caller is already registered as a doctor")
	} else if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, err
	}

	existing, err := r.repo.GetDoctorByLicense(ctx, license)
	switch {
	case err == nil:
		if existing.CallerID != nil {
			return nil, apperr.Conflict("license %s already has an active registration", license)
		}
		return r.repo.LinkDoctor(ctx, existing.ID, caller.ID, name, specialty, email)
	case apperr.KindOf(err) == apperr.KindNotFound:
		callerID := caller.ID
		return r.repo.CreateDoctor(ctx, directory.Doctor{
			CallerID:      &callerID,
			Name:          name,
			LicenseNumber: license,
			Specialty:     specialty,
			Email:         email,
		})
	default:
		return nil, err
	}
}
