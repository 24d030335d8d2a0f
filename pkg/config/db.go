package config

import (
	"context"
	"fmt"
	"time"

	"pratham-chat/backend/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens the postgres pool used by the postgres persistence backend
// and the recording catalog.
func NewDB(cfg *Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = Get()
	}

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
		max(1, int(cfg.Database.Timeout.Seconds())),
	)

	gormConfig := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Error)}
	if cfg.Server.Env == "development" {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	retries := max(1, cfg.Database.Retries)
	var db *gorm.DB
	var err error
	for i := 0; i < retries; i++ {
		if db, err = gorm.Open(postgres.Open(dsn), gormConfig); err == nil {
			break
		}
		if i < retries-1 {
			logger.GetGlobal().Warn("Failed to connect to database, retrying",
				"attempt", i+1, "delay", cfg.Database.RetryDelay, "error", err)
			time.Sleep(cfg.Database.RetryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", retries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	sqlDB.SetMaxIdleConns(min(10, cfg.Database.MaxConns))
	sqlDB.SetMaxOpenConns(cfg.Database.MaxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	return db, nil
}

// PingDB checks that the pool can still reach the server
func PingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}
