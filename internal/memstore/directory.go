package memstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/directory"
)

type directoryRepo struct {
	s *Store
}

func (r directoryRepo) CreateDoctor(_ context.Context, d directory.Doctor) (*directory.Doctor, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.doctors {
		switch {
		case existing.LicenseNumber == d.LicenseNumber:
			return nil, apperr.Conflict("doctor already exists (doctors_license_number_key)")
		case sameOptional(existing.Email, d.Email):
			return nil, apperr.Conflict("doctor already exists (doctors_email_key)")
		case sameOptional(existing.CallerID, d.CallerID):
			return nil, apperr.Conflict("doctor already exists (doctors_caller_id_key)")
		}
	}

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := s.tick()
	d.CreatedAt, d.UpdatedAt = now, now
	s.doctors[d.ID] = d
	return &d, nil
}

func sameOptional(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func (r directoryRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*directory.Doctor, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.doctors[id]
	if !ok {
		return nil, apperr.NotFound("doctor not found")
	}
	return &d, nil
}

func (r directoryRepo) findDoctor(match func(directory.Doctor) bool) (*directory.Doctor, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.doctors {
		if match(d) {
			return &d, nil
		}
	}
	return nil, apperr.NotFound("doctor not found")
}

func (r directoryRepo) GetDoctorByCallerID(_ context.Context, callerID string) (*directory.Doctor, error) {
	return r.findDoctor(func(d directory.Doctor) bool {
		return d.CallerID != nil && *d.CallerID == callerID
	})
}

func (r directoryRepo) GetDoctorByLicense(_ context.Context, license string) (*directory.Doctor, error) {
	return r.findDoctor(func(d directory.Doctor) bool { return d.LicenseNumber == license })
}

func (r directoryRepo) LinkDoctor(_ context.Context, id uuid.UUID, callerID string, name, specialty string, email *string) (*directory.Doctor, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.doctors[id]
	if !ok || d.CallerID != nil {
		return nil, apperr.Conflict("license is already linked to another account")
	}
	for otherID, other := range s.doctors {
		if otherID == id {
			continue
		}
		if sameOptional(other.CallerID, &callerID) || sameOptional(other.Email, email) {
			return nil, apperr.Conflict("doctor already exists")
		}
	}

	d.CallerID = &callerID
	d.Name = name
	d.Specialty = specialty
	d.Email = email
	d.UpdatedAt = s.tick()
	s.doctors[id] = d
	return &d, nil
}

func (r directoryRepo) CreatePatient(_ context.Context, p directory.Patient) (*directory.Patient, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPatientUnique(p); err != nil {
		return nil, err
	}
	return s.insertPatient(p), nil
}

func (s *Store) checkPatientUnique(p directory.Patient) error {
	for _, existing := range s.patients {
		switch {
		case existing.TaxID == p.TaxID:
			return apperr.Conflict("patient already exists (patients_tax_id_key)")
		case sameOptional(existing.CallerID, p.CallerID):
			return apperr.Conflict("patient already exists (patients_caller_id_key)")
		case sameOptional(existing.Email, p.Email):
			return apperr.Conflict("patient already exists (patients_email_key)")
		}
	}
	return nil
}

func (s *Store) insertPatient(p directory.Patient) *directory.Patient {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := s.tick()
	p.CreatedAt, p.UpdatedAt = now, now
	s.patients[p.ID] = p
	return &p
}

func (r directoryRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*directory.Patient, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient not found")
	}
	return &p, nil
}

func (r directoryRepo) GetPatientByCallerID(_ context.Context, callerID string) (*directory.Patient, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.patients {
		if p.CallerID != nil && *p.CallerID == callerID {
			return &p, nil
		}
	}
	return nil, apperr.NotFound("patient not found")
}

func (r directoryRepo) GetOrCreatePatient(_ context.Context, callerID string, defaults directory.Patient) (*directory.Patient, bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.patients {
		if p.CallerID != nil && *p.CallerID == callerID {
			return &p, false, nil
		}
	}

	defaults.ID = uuid.Nil
	defaults.CallerID = &callerID
	if defaults.Email != nil {
		for _, existing := range s.patients {
			if sameOptional(existing.Email, defaults.Email) {
				defaults.Email = nil
				break
			}
		}
	}
	if err := s.checkPatientUnique(defaults); err != nil {
		return nil, false, err
	}
	return s.insertPatient(defaults), true, nil
}
