package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/logging"
	appmigrations "github.com/hackgods/clinic-booking/migrations"
)

// usage: migrate [up | down | force <version> | version]
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.Storage != config.StoragePostgres {
		log.Fatalf("migrate needs STORAGE=%s", config.StoragePostgres)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Fatal("ping db", zap.Error(err))
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		logger.Fatal("db driver", zap.Error(err))
	}

	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		logger.Fatal("source driver", zap.Error(err))
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		logger.Fatal("create migrator", zap.Error(err))
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "force":
		if len(os.Args) < 3 {
			logger.Fatal("force needs a version")
		}
		version, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil {
			logger.Fatal("invalid version", zap.Error(convErr))
		}
		err = m.Force(version)
	case "version":
		version, dirty, verErr := m.Version()
		if verErr != nil && !errors.Is(verErr, migrate.ErrNilVersion) {
			logger.Fatal("read version", zap.Error(verErr))
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return
	default:
		logger.Fatal("unknown command", zap.String("command", cmd))
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("migrate "+cmd, zap.Error(err))
	}

	logger.Info("migrations complete", zap.String("command", cmd))
}
