package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"growth-ledger/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect establishes a connection to the configured database
func Connect(driver, dsn string) error {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		dialector = postgres.Open(dsn)
	}

	var err error
	DB, err = gorm.Open(dialector, NewGormConfig(logger.Default.LogMode(logger.Error)))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		// one writer at a time; avoids SQLITE_BUSY between pooled connections
		sqlDB, err := DB.DB()
		if err != nil {
			return fmt.Errorf("failed to access sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Printf("Database connection established successfully (%s)", driver)
	return nil
}

// NewGormConfig is shared by the server and tests so timestamps and
// constraint errors behave identically everywhere.
func NewGormConfig(l logger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger:                                   l,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// AllModels lists every table owned by the engine
func AllModels() []interface{} {
	return []interface{}{
		&models.AppPolicy{},
		&models.Identity{},
		&models.Profile{},
		&models.CreditEntry{},
		&models.Referral{},
		&models.WaitlistEntry{},
		&models.AuditEvent{},
	}
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate creates or updates the schema on db
func Migrate(db *gorm.DB) error {
	for _, model := range AllModels() {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migration failed for %T: %w", model, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// ConnectRedis returns nil, nil when addr is empty (caching disabled)
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Println("Connected to Redis")
	return rdb, nil
}
