package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"safeform/internal/forms"
	"safeform/internal/logger"
)

var ErrNotFound = errors.New("record not found")

// Service is the persistence boundary for forms, users and notifications.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health() map[string]string

	// Close terminates the database connection.
	Close() error

	// RunMigrations applies the embedded schema migrations.
	RunMigrations() error

	CreateOrUpdateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id int) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	LoadTemplate(ctx context.Context, orgID uuid.UUID, templateID string) (forms.FormTemplate, error)
	LoadTemplateForReview(ctx context.Context, orgID uuid.UUID, templateID string) (forms.FormTemplate, error)
	SaveTemplate(ctx context.Context, orgID uuid.UUID, t forms.FormTemplate) (forms.FormTemplate, error)
	ListTemplates(ctx context.Context, orgID uuid.UUID) ([]TemplateSummary, error)
	DeactivateTemplate(ctx context.Context, orgID uuid.UUID, templateID string) error

	LoadSubmission(ctx context.Context, orgID uuid.UUID, submissionID string) (forms.FormSubmission, error)
	SaveSubmission(ctx context.Context, orgID uuid.UUID, sub forms.FormSubmission) (forms.FormSubmission, error)
	ListSubmissions(ctx context.Context, orgID uuid.UUID, filter SubmissionFilter) ([]forms.FormSubmission, error)

	CreateNotification(ctx context.Context, n *Notification) error
	GetUserNotifications(ctx context.Context, userID int, limit int) ([]*Notification, error)
	MarkNotificationAsRead(ctx context.Context, notificationID uuid.UUID, userID int) error
}

type service struct {
	db *sql.DB
}

var dbInstance *service

// New opens the database once per process and returns the shared service.
func New(dsn string) Service {
	if dbInstance != nil {
		return dbInstance
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	dbInstance = &service{db: db}
	return dbInstance
}

// Health checks the health of the database connection by pinging the database.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		logger.Errorf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.OpenConnections > 40 {
		stats["message"] = "The database is experiencing heavy load."
	}
	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	logger.Info("disconnected from database")
	return s.db.Close()
}
