package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrganizationMembership represents the relationship between users and organizations
type OrganizationMembership struct {
	ID             uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrganizationID uuid.UUID        `gorm:"type:uuid;not null" json:"organization_id"`
	UserID         int              `gorm:"not null" json:"user_id"`
	Role           MembershipRole   `gorm:"type:membership_role;not null;default:'member'" json:"role"`
	Status         MembershipStatus `gorm:"type:membership_status;default:'active'" json:"status"`
	JoinedAt       time.Time        `gorm:"column:joined_at" json:"joined_at"`
	CreatedAt      time.Time        `gorm:"column:created_at" json:"created_at"`

	// Associations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	User         User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName specifies the table name for the OrganizationMembership model
func (OrganizationMembership) TableName() string {
	return "organization_memberships"
}

// BeforeCreate sets the joined_at timestamp if not set
func (om *OrganizationMembership) BeforeCreate(tx *gorm.DB) error {
	if om.JoinedAt.IsZero() {
		om.JoinedAt = time.Now()
	}
	return nil
}

// MembershipManager provides Django-like ORM methods for OrganizationMembership
type MembershipManager struct {
	db *gorm.DB
}

// NewMembershipManager creates a new MembershipManager instance
func NewMembershipManager(db *gorm.DB) *MembershipManager {
	return &MembershipManager{db: db}
}

// Create creates a new membership
func (m *MembershipManager) Create(membership *OrganizationMembership) error {
	return m.db.Omit(clause.Associations).Create(membership).Error
}

// GetByUserAndOrganization retrieves a membership by user and organization
func (m *MembershipManager) GetByUserAndOrganization(userID int, orgID uuid.UUID) (*OrganizationMembership, error) {
	var membership OrganizationMembership
	err := m.db.Where("user_id = ? AND organization_id = ?", userID, orgID).First(&membership).Error
	if err != nil {
		return nil, notFound(err, ErrNotMember)
	}
	return &membership, nil
}

// Update updates a membership
func (m *MembershipManager) Update(membership *OrganizationMembership) error {
	return m.db.Omit(clause.Associations).Save(membership).Error
}

// IsActive checks if the membership is active
func (om *OrganizationMembership) IsActive() bool {
	return om.Status == StatusActive
}

// IsAdmin checks if the membership has admin role (or owner)
func (om *OrganizationMembership) IsAdmin() bool {
	return om.Role == RoleAdmin || om.Role == RoleOwner
}

// CanManageTemplates reports whether the member may author templates and
// members.
func (om *OrganizationMembership) CanManageTemplates() bool {
	return om.IsActive() && om.IsAdmin()
}

// CanReview reports whether the member may move submissions through review.
func (om *OrganizationMembership) CanReview() bool {
	return om.IsActive() && om.IsAdmin()
}

// CanSubmit reports whether the member may fill in forms. Viewers only read.
func (om *OrganizationMembership) CanSubmit() bool {
	return om.IsActive() && om.Role != RoleViewer
}
