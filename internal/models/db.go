package models

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection and all model managers
type DB struct {
	*gorm.DB
	Users         *UserManager
	Organizations *OrganizationManager
	Memberships   *MembershipManager
}

// NewDB opens a GORM connection. The schema itself is owned by the SQL
// migrations in the database package.
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_STRING environment variable not set")
	}

	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	gormDB, err := gorm.Open(postgres.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return wrap(gormDB), nil
}

func wrap(db *gorm.DB) *DB {
	return &DB{
		DB:            db,
		Users:         NewUserManager(db),
		Organizations: NewOrganizationManager(db),
		Memberships:   NewMembershipManager(db),
	}
}

// Transaction runs a function within a database transaction
func (db *DB) Transaction(fn func(*DB) error) error {
	return db.DB.Transaction(func(tx *gorm.DB) error {
		return fn(wrap(tx))
	})
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// notFound maps gorm.ErrRecordNotFound to target and wraps anything else.
func notFound(err error, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}
