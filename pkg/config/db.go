package config

import (
	"fmt"
	"time"

	applog "dinsac-chat/backend/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens the Postgres connection the message store lives on. Postgres
// often comes up after this service under compose, so the dial retries with
// the configured tries/delay before giving up.
func NewDB(log *applog.Logger) (*gorm.DB, error) {
	cfg := Get()

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	}
	if cfg.Server.Env == "development" {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	tries := cfg.Database.ConnectTries
	if tries < 1 {
		tries = 1
	}

	var db *gorm.DB
	var err error
	for attempt := 1; attempt <= tries; attempt++ {
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
		if err == nil {
			break
		}
		log.Warn("Database not reachable yet",
			"attempt", attempt,
			"tries", tries,
			"retry_in", cfg.Database.ConnectDelay.String(),
		)
		if attempt < tries {
			time.Sleep(cfg.Database.ConnectDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("database unreachable after %d tries: %w", tries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	return db, nil
}

// Ping checks that the database connection is alive
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
