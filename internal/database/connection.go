// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/licenseforge/royalty-backend/internal/config"
	"github.com/licenseforge/royalty-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.Admin{},
		&models.LicenseType{},
		&models.Licensee{},
		&models.LicenseAgreement{},
		&models.SequenceCounter{},
		&models.RoyaltyReport{},
		&models.RoyaltyTransaction{},
		&models.LedgerEvent{},
		&models.Account{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// License type indexes
		"CREATE INDEX IF NOT EXISTS idx_license_types_created_at ON license_types(created_at DESC)",

		// Agreement indexes
		"CREATE INDEX IF NOT EXISTS idx_agreements_licensee ON license_agreements(licensee)",
		"CREATE INDEX IF NOT EXISTS idx_agreements_license_hash ON license_agreements(license_hash)",
		"CREATE INDEX IF NOT EXISTS idx_agreements_usable ON license_agreements(usable)",
		"CREATE INDEX IF NOT EXISTS idx_agreements_created_at ON license_agreements(created_at DESC)",

		// Report indexes
		"CREATE INDEX IF NOT EXISTS idx_reports_agreement ON royalty_reports(licensee, application_hash)",
		"CREATE INDEX IF NOT EXISTS idx_reports_created_at ON royalty_reports(created_at DESC)",

		// Transaction indexes
		"CREATE INDEX IF NOT EXISTS idx_royalty_transactions_from ON royalty_transactions(from_address)",
		"CREATE INDEX IF NOT EXISTS idx_royalty_transactions_to ON royalty_transactions(to_address)",
		"CREATE INDEX IF NOT EXISTS idx_royalty_transactions_type_status ON royalty_transactions(transaction_type, status)",
		"CREATE INDEX IF NOT EXISTS idx_royalty_transactions_created_at ON royalty_transactions(created_at DESC)",

		// Event indexes
		"CREATE INDEX IF NOT EXISTS idx_ledger_events_type ON ledger_events(event_type, occurred_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_ledger_events_licensee ON ledger_events(licensee, occurred_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_ledger_events_agreement ON ledger_events(licensee, application_hash)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
