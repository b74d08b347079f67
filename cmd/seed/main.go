package main

import (
	"context"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/slot"
)

const (
	doctorCount  = 10
	patientCount = 200
	slotDays     = 7
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// clinic hours, with a lunch break
var slotTimes = []string{"08:00", "09:00", "10:00", "11:00", "13:00", "14:00", "15:00", "16:00", "17:00"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.Storage != config.StoragePostgres {
		log.Fatalf("seed needs STORAGE=%s", config.StoragePostgres)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	gofakeit.Seed(0)

	dir := directory.NewPgRepository(pool)
	registry := slot.NewRegistry(slot.NewPgRepository(pool), cfg.Location, time.Now, logger)

	doctors, err := seedDoctors(ctx, dir, doctorCount, logger)
	if err != nil {
		logger.Fatal("seed doctors", zap.Error(err))
	}
	if err := seedPatients(ctx, dir, patientCount, logger); err != nil {
		logger.Fatal("seed patients", zap.Error(err))
	}
	if err := seedSlots(ctx, registry, doctors, logger); err != nil {
		logger.Fatal("seed slots", zap.Error(err))
	}

	logger.Info("seed complete")
}

func seedDoctors(ctx context.Context, dir directory.Repository, count int, logger *zap.Logger) ([]directory.Doctor, error) {
	logger.Info("seeding doctors", zap.Int("count", count))

	var doctors []directory.Doctor
	for i := 0; i < count; i++ {
		email := gofakeit.Email()
		d, err := dir.CreateDoctor(ctx, directory.Doctor{
			Name:          "Dr. " + gofakeit.Name(),
			LicenseNumber: gofakeit.Numerify("CRM-######"),
			Specialty:     specialties[gofakeit.Number(0, len(specialties)-1)],
			Email:         &email,
		})
		if err != nil {
			if apperr.KindOf(err) == apperr.KindConflict {
				continue
			}
			return nil, err
		}
		doctors = append(doctors, *d)
	}

	logger.Info("doctors seeded", zap.Int("created", len(doctors)))
	return doctors, nil
}

func seedPatients(ctx context.Context, dir directory.Repository, count int, logger *zap.Logger) error {
	logger.Info("seeding patients", zap.Int("count", count))

	created := 0
	for i := 0; i < count; i++ {
		email := gofakeit.Email()
		phone := gofakeit.Phone()
		_, err := dir.CreatePatient(ctx, directory.Patient{
			Name:  gofakeit.Name(),
			TaxID: gofakeit.Numerify("###.###.###-##"),
			Email: &email,
			Phone: &phone,
		})
		if err != nil {
			if apperr.KindOf(err) == apperr.KindConflict {
				continue
			}
			return err
		}
		created++
	}

	logger.Info("patients seeded", zap.Int("created", created))
	return nil
}

func seedSlots(ctx context.Context, registry *slot.Registry, doctors []directory.Doctor, logger *zap.Logger) error {
	times := make([]slot.TimeOfDay, 0, len(slotTimes))
	for _, raw := range slotTimes {
		times = append(times, slot.MustTimeOfDay(raw))
	}

	firstDay := slot.Date(registry.Now().In(registry.Location()))
	total := 0
	for _, d := range doctors {
		created, err := registry.GenerateSlots(ctx, d.ID, firstDay, slotDays, times)
		if err != nil {
			return err
		}
		total += len(created)
	}

	logger.Info("slots seeded", zap.Int("created", total), zap.Int("days", slotDays))
	return nil
}
