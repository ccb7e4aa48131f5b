package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/straye-as/offer-pipeline-api/internal/config"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormConfig is shared by every connection so timestamps are always UTC
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NewDatabase connects to PostgreSQL, retrying the initial connection with
// exponential backoff.
func NewDatabase(ctx context.Context, cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	var db *gorm.DB
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		db, err = gorm.Open(postgres.Open(cfg.ConnectionString()), GormConfig())
		if err != nil {
			log.Warn("Database connection failed, retrying", zap.Error(err))
			return retry.RetryableError(fmt.Errorf("failed to connect to database: %w", err))
		}

		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get database instance: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			log.Warn("Database ping failed, retrying", zap.Error(err))
			_ = sqlDB.Close()
			return retry.RetryableError(fmt.Errorf("failed to ping database: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return db, nil
}

// HealthCheck pings the database
func HealthCheck(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// HealthCheckWithStats pings the database and returns pool statistics
func HealthCheckWithStats(db *gorm.DB) (sql.DBStats, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return sql.DBStats{}, fmt.Errorf("failed to get database instance: %w", err)
	}
	stats := sqlDB.Stats()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

// AutoMigrate creates the schema from the models (development and tests only;
// deployed databases use the SQL migrations)
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Zone{},
		&domain.User{},
		&domain.Customer{},
		&domain.Contact{},
		&domain.Asset{},
		&domain.SparePart{},
		&domain.Offer{},
		&domain.OfferSparePart{},
		&domain.StageRemark{},
		&domain.ActivityLog{},
		&domain.Target{},
		&domain.NumberSequence{},
	)
}
