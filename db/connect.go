package db

import (
	"fmt"
	"strings"
	"time"

	"energy-server/confs"
	"energy-server/entities"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BuildDSN returns the postgres connection string for cfg and the sslmode it
// settled on.
func BuildDSN(cfg confs.DatabaseConfig) (string, error) {
	if cfg.URL != "" {
		dsn := cfg.URL
		// hosted databases need SSL unless the URL says otherwise
		if !strings.Contains(dsn, "sslmode=") {
			if strings.Contains(dsn, "?") {
				dsn += "&sslmode=require"
			} else {
				dsn += "?sslmode=require"
			}
		}
		return dsn, nil
	}

	if !cfg.HasDatabase() {
		return "", confs.ErrMissingDatabase
	}

	sslMode := "require"
	if cfg.Host == "localhost" || cfg.Host == "127.0.0.1" {
		sslMode = "disable"
	}

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, sslMode), nil
}

// Connect opens the postgres pool and migrates the schema.
func Connect(cfg confs.DatabaseConfig, log zerolog.Logger) (Database, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().Bool("url", cfg.URL != "").Msg("connecting to database")

	gormLog := logger.New(zerologWriter{log: log}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(0)

	log.Info().Msg("running database migrations")
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info().Msg("database ready")

	return &GormDatabase{DB: db}, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entities.User{},
		&entities.Device{},
		&entities.EnergySample{},
		&entities.Budget{},
		&entities.Alert{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// zerologWriter adapts zerolog to gorm's logger.Writer.
type zerologWriter struct {
	log zerolog.Logger
}

func (w zerologWriter) Printf(format string, args ...interface{}) {
	w.log.Warn().Str("component", "gorm").Msgf(format, args...)
}
