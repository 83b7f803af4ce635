package store

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the relational store and migrates the schema
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates every table the stores use
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&IdentityRecord{},
		&HackathonRecord{},
		&PrizeRecord{},
		&JudgeRecord{},
		&ProjectRecord{},
	)
}
