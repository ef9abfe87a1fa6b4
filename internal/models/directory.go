package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Directory answers who belongs to which organization and with what role.
type Directory interface {
	UserOrganizations(ctx context.Context, userID int) ([]UserOrganization, error)
	Membership(ctx context.Context, userID int, slug string) (*Organization, *OrganizationMembership, error)
	CreateOrganization(ctx context.Context, name, description string, ownerID int) (*Organization, error)
	Members(ctx context.Context, orgID uuid.UUID) ([]Member, error)
	AddMember(ctx context.Context, orgID uuid.UUID, email string, role MembershipRole) (*Member, error)
	Reviewers(ctx context.Context, orgID uuid.UUID) ([]int, error)
	UpdateOrganizationSettings(ctx context.Context, org *Organization, settings OrganizationSettings) error
}

var _ Directory = (*DB)(nil)

// UserOrganization is one organization as seen by a member.
type UserOrganization struct {
	OrganizationID uuid.UUID      `json:"organization_id"`
	Name           string         `json:"name"`
	Slug           string         `json:"slug"`
	Description    string         `json:"description"`
	Role           MembershipRole `json:"role"`
	JoinedAt       time.Time      `json:"joined_at"`
}

// Member represents a member view with user details and role
type Member struct {
	ID        int              `json:"id"`
	Email     string           `json:"email"`
	Name      string           `json:"name"`
	AvatarURL string           `json:"avatar_url"`
	Role      MembershipRole   `json:"role"`
	Status    MembershipStatus `json:"status"`
	JoinedAt  time.Time        `json:"joined_at"`
}

func (db *DB) withContext(ctx context.Context) *DB {
	return wrap(db.DB.WithContext(ctx))
}

// UserOrganizations lists the active organizations of a user, oldest
// membership first.
func (db *DB) UserOrganizations(ctx context.Context, userID int) ([]UserOrganization, error) {
	query := `
		SELECT
			o.id AS organization_id,
			o.name,
			o.slug,
			o.description,
			om.role,
			om.joined_at
		FROM organization_memberships om
		JOIN organizations o ON om.organization_id = o.id
		WHERE om.user_id = ?
		AND om.status = ?
		AND o.is_active = true
		AND o.deleted_at IS NULL
		ORDER BY om.joined_at ASC`

	orgs := []UserOrganization{}
	if err := db.DB.WithContext(ctx).Raw(query, userID, StatusActive).Scan(&orgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}

// Membership resolves an organization by slug together with the user's active
// membership in it.
func (db *DB) Membership(ctx context.Context, userID int, slug string) (*Organization, *OrganizationMembership, error) {
	d := db.withContext(ctx)

	org, err := d.Organizations.GetBySlug(slug)
	if err != nil {
		return nil, nil, fmt.Errorf("organization %s: %w", slug, err)
	}
	membership, err := d.Memberships.GetByUserAndOrganization(userID, org.ID)
	if err != nil {
		return org, nil, fmt.Errorf("organization %s: %w", slug, err)
	}
	if !membership.IsActive() {
		return org, nil, fmt.Errorf("organization %s: %w", slug, ErrNotMember)
	}
	return org, membership, nil
}

// UpdateOrganizationSettings replaces the per-organization forms overrides.
func (db *DB) UpdateOrganizationSettings(ctx context.Context, org *Organization, settings OrganizationSettings) error {
	if err := db.withContext(ctx).Organizations.UpdateSettings(org, settings); err != nil {
		return fmt.Errorf("failed to update organization settings: %w", err)
	}
	return nil
}

// CreateOrganization creates an organization owned by ownerID.
func (db *DB) CreateOrganization(ctx context.Context, name, description string, ownerID int) (*Organization, error) {
	org := &Organization{
		Name:        name,
		Description: description,
		IsActive:    true,
	}

	err := db.withContext(ctx).Transaction(func(tx *DB) error {
		if _, err := tx.Users.Get(ownerID); err != nil {
			return err
		}
		if err := tx.Organizations.Create(org); err != nil {
			return err
		}
		return tx.Memberships.Create(&OrganizationMembership{
			OrganizationID: org.ID,
			UserID:         ownerID,
			Role:           RoleOwner,
			Status:         StatusActive,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	return org, nil
}

// Members lists active members with their roles.
func (db *DB) Members(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	query := `
		SELECT u.id, u.email, u.name, u.avatar_url,
			   om.role, om.status, om.joined_at
		FROM users u
		JOIN organization_memberships om ON u.id = om.user_id
		WHERE om.organization_id = ? AND om.status = ?
		ORDER BY om.joined_at ASC`

	members := []Member{}
	if err := db.DB.WithContext(ctx).Raw(query, orgID, StatusActive).Scan(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// AddMember adds an existing user, found by email, with role. A current
// member gets the new role and is reactivated.
func (db *DB) AddMember(ctx context.Context, orgID uuid.UUID, email string, role MembershipRole) (*Member, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	var member *Member
	err := db.withContext(ctx).Transaction(func(tx *DB) error {
		user, err := tx.Users.GetByEmail(email)
		if err != nil {
			return err
		}

		membership, err := tx.Memberships.GetByUserAndOrganization(user.ID, orgID)
		switch {
		case errors.Is(err, ErrNotMember):
			membership = &OrganizationMembership{
				OrganizationID: orgID,
				UserID:         user.ID,
				Role:           role,
				Status:         StatusActive,
			}
			if err := tx.Memberships.Create(membership); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if membership.Role == RoleOwner && role != RoleOwner {
				org := &Organization{ID: orgID}
				if err := org.validateOwnerRemoval(tx.DB, user.ID); err != nil {
					return err
				}
			}
			membership.Role = role
			membership.Status = StatusActive
			if err := tx.Memberships.Update(membership); err != nil {
				return err
			}
		}

		member = &Member{
			ID:        user.ID,
			Email:     user.Email,
			Name:      user.Name,
			AvatarURL: user.AvatarURL,
			Role:      membership.Role,
			Status:    membership.Status,
			JoinedAt:  membership.JoinedAt,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return member, nil
}

// Reviewers returns the ids of active owners and admins.
func (db *DB) Reviewers(ctx context.Context, orgID uuid.UUID) ([]int, error) {
	var ids []int
	err := db.DB.WithContext(ctx).Model(&OrganizationMembership{}).
		Where("organization_id = ? AND status = ? AND role IN ?", orgID, StatusActive, []MembershipRole{RoleOwner, RoleAdmin}).
		Order("joined_at ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewers: %w", err)
	}
	return ids, nil
}
