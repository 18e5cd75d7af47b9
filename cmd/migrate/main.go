package main

import (
	"errors"
	"flag"

	"github.com/donana/kitchen-api/internal/config"
	"github.com/donana/kitchen-api/internal/logger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	dir := flag.String("path", "migrations", "directory holding the SQL migrations")
	down := flag.Bool("down", false, "roll back every migration instead of applying them")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	m, err := migrate.New("file://"+*dir, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("open migrations")
	}
	defer m.Close()

	if *down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.WithError(err).Fatal("migrate")
	}

	version, dirty, _ := m.Version()
	log.WithFields(logrus.Fields{"version": version, "dirty": dirty, "down": *down}).Info("migrations applied")
}
