package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/memstore"
)

func TestResolveCallerAsPatientIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := identity.NewResolver(memstore.New().Directory(), nil)
	caller := identity.Caller{ID: "auth|42", Name: "Paula", Email: "paula@example.com"}

	first, err := r.ResolveCallerAsPatient(ctx, caller)
	require.NoError(t, err)
	assert.Equal(t, "Paula", first.Name)
	assert.Equal(t, directory.PlaceholderTaxID("auth|42"), first.TaxID)
	require.NotNil(t, first.Email)
	assert.Equal(t, "paula@example.com", *first.Email)

	second, err := r.ResolveCallerAsPatient(ctx, caller)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestResolveCallerAsPatientDefaults(t *testing.T) {
	r := identity.NewResolver(memstore.New().Directory(), nil)

	p, err := r.ResolveCallerAsPatient(context.Background(), identity.Caller{ID: "auth|7"})
	require.NoError(t, err)
	assert.Equal(t, "auth|7", p.Name)
	assert.Nil(t, p.Email)

	_, err = r.ResolveCallerAsPatient(context.Background(), identity.Caller{ID: "  "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestResolveCallerAsDoctorRequiresRecord(t *testing.T) {
	r := identity.NewResolver(memstore.New().Directory(), nil)
	_, err := r.ResolveCallerAsDoctor(context.Background(), identity.Caller{ID: "auth|1"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRegisterDoctorLinksExistingLicense(t *testing.T) {
	ctx := context.Background()
	dir := memstore.New().Directory()
	seeded, err := dir.CreateDoctor(ctx, directory.Doctor{Name: "Dr. Seed", LicenseNumber: "CRM-9", Specialty: "GP"})
	require.NoError(t, err)

	r := identity.NewResolver(dir, nil)
	caller := identity.Caller{ID: "auth|doc"}
	linked, err := r.RegisterDoctor(ctx, caller, identity.RegisterDoctorInput{
		Name:          "Dra. Ana",
		LicenseNumber: "CRM-9",
		Specialty:     "Cardiology",
	})
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, linked.ID)
	assert.Equal(t, "Dra. Ana", linked.Name)
	require.NotNil(t, linked.CallerID)
	assert.Equal(t, "auth|doc", *linked.CallerID)

	_, err = r.RegisterDoctor(ctx, caller, identity.RegisterDoctorInput{Name: "x", LicenseNumber: "CRM-10", Specialty: "GP"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = r.RegisterDoctor(ctx, identity.Caller{ID: "auth|other"}, identity.RegisterDoctorInput{
		Name: "Impostor", LicenseNumber: "CRM-9", Specialty: "GP",
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRegisterDoctorCreatesAndResolves(t *testing.T) {
	ctx := context.Background()
	r := identity.NewResolver(memstore.New().Directory(), nil)
	caller := identity.Caller{ID: "auth|new"}

	_, err := r.RegisterDoctor(ctx, caller, identity.RegisterDoctorInput{Name: "Ana"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	doc, err := r.RegisterDoctor(ctx, caller, identity.RegisterDoctorInput{
		Name: "Ana", LicenseNumber: "CRM-11", Specialty: "Pediatrics", Email: "ana@clinic.test",
	})
	require.NoError(t, err)

	actor, err := r.Resolve(ctx, caller)
	require.NoError(t, err)
	assert.True(t, actor.IsDoctor())
	assert.Equal(t, doc.ID, actor.ID)

	patient, err := r.Resolve(ctx, identity.Caller{ID: "auth|patient"})
	require.NoError(t, err)
	assert.True(t, patient.IsPatient())
	assert.Equal(t, "auth|patient", patient.CallerID)
}
