package models

import (
	"crypto/rand"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"safeform/internal/forms"
)

// OrganizationSettings are per-organization overrides. Nil members fall back
// to the process wide forms policy.
type OrganizationSettings struct {
	AllowEmptyOptionSet *bool `json:"forms_allow_empty_option_set,omitempty"`
	EnforceFileRequired *bool `json:"forms_enforce_file_required,omitempty"`
}

// Organization is a company or crew that owns form templates.
type Organization struct {
	ID          uuid.UUID                                `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string                                   `gorm:"column:name;not null" json:"name"`
	Slug        string                                   `gorm:"column:slug;uniqueIndex;not null" json:"slug"`
	Description string                                   `gorm:"column:description" json:"description"`
	Settings    datatypes.JSONType[OrganizationSettings] `gorm:"column:settings;type:jsonb" json:"settings"`
	IsActive    bool                                     `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt   time.Time                                `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time                                `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt   gorm.DeletedAt                           `gorm:"index;column:deleted_at" json:"deleted_at,omitempty"`

	// Associations
	Memberships []OrganizationMembership `gorm:"foreignKey:OrganizationID" json:"memberships,omitempty"`
}

// TableName specifies the table name for the Organization model
func (Organization) TableName() string {
	return "organizations"
}

// BeforeCreate derives a unique slug from the name if not provided
func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.Slug != "" {
		return nil
	}
	base := slugify(o.Name)
	for attempts := 0; attempts < 100; attempts++ {
		slug := base + "-" + generateSlug(6)
		var count int64
		if err := tx.Model(&Organization{}).Unscoped().Where("slug = ?", slug).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			o.Slug = slug
			return nil
		}
	}
	return errors.New("could not generate unique slug")
}

// Policy applies the organization's overrides on top of base.
func (o *Organization) Policy(base forms.Policy) forms.Policy {
	s := o.Settings.Data()
	if s.AllowEmptyOptionSet != nil {
		base.AllowEmptyOptionSet = *s.AllowEmptyOptionSet
	}
	if s.EnforceFileRequired != nil {
		base.EnforceFileRequired = *s.EnforceFileRequired
	}
	return base
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if len(s) > 40 {
		s = strings.TrimRight(s[:40], "-")
	}
	if s == "" {
		return "org"
	}
	return s
}

// generateSlug generates a random alphanumeric string of given length
func generateSlug(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, length)
	rand.Read(b)
	for i := range b {
		b[i] = charset[b[i]%byte(len(charset))]
	}
	return string(b)
}

// OrganizationManager provides Django-like ORM methods for Organization
type OrganizationManager struct {
	db *gorm.DB
}

// NewOrganizationManager creates a new OrganizationManager instance
func NewOrganizationManager(db *gorm.DB) *OrganizationManager {
	return &OrganizationManager{db: db}
}

// Create creates a new organization
func (m *OrganizationManager) Create(org *Organization) error {
	return m.db.Create(org).Error
}

// GetBySlug retrieves an active organization by slug
func (m *OrganizationManager) GetBySlug(slug string) (*Organization, error) {
	var org Organization
	if err := m.db.Where("slug = ? AND is_active = ?", slug, true).First(&org).Error; err != nil {
		return nil, notFound(err, ErrOrganizationNotFound)
	}
	return &org, nil
}

// UpdateSettings replaces the organization's settings
func (m *OrganizationManager) UpdateSettings(org *Organization, settings OrganizationSettings) error {
	org.Settings = datatypes.NewJSONType(settings)
	return m.db.Model(org).Update("settings", org.Settings).Error
}

// validateOwnerRemoval ensures the organization keeps at least one active owner
// besides userID.
func (o *Organization) validateOwnerRemoval(db *gorm.DB, userID int) error {
	var ownerCount int64
	err := db.Model(&OrganizationMembership{}).
		Where("organization_id = ? AND role = ? AND status = ? AND user_id != ?",
			o.ID, RoleOwner, StatusActive, userID).
		Count(&ownerCount).Error
	if err != nil {
		return err
	}
	if ownerCount == 0 {
		return ErrLastOwner
	}
	return nil
}
