package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the GORM view of the users table. Sign-in writes go through the
// database package; this side only reads users for membership queries.
type User struct {
	ID         int       `gorm:"primaryKey;column:id" json:"id"`
	Provider   string    `gorm:"column:provider;not null" json:"provider"`
	ProviderID string    `gorm:"column:provider_id;not null" json:"provider_id"`
	Email      string    `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	AvatarURL  string    `gorm:"column:avatar_url" json:"avatar_url"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`

	// Associations
	Memberships []OrganizationMembership `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// UserManager provides Django-like ORM methods for User
type UserManager struct {
	db *gorm.DB
}

// NewUserManager creates a new UserManager instance
func NewUserManager(db *gorm.DB) *UserManager {
	return &UserManager{db: db}
}

// Get retrieves a user by ID
func (m *UserManager) Get(id int) (*User, error) {
	var user User
	if err := m.db.First(&user, id).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email
func (m *UserManager) GetByEmail(email string) (*User, error) {
	var user User
	if err := m.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &user, nil
}
