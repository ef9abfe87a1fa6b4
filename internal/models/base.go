// Package models holds the identity context: users, organizations and their
// memberships, mapped with GORM over the tables the database package migrates.
package models

import (
	"errors"
)

// Custom types to match PostgreSQL enums
type MembershipRole string
type MembershipStatus string

const (
	// Membership Roles
	RoleOwner  MembershipRole = "owner"
	RoleAdmin  MembershipRole = "admin"
	RoleMember MembershipRole = "member"
	RoleViewer MembershipRole = "viewer"

	// Membership Status
	StatusActive    MembershipStatus = "active"
	StatusSuspended MembershipStatus = "suspended"
	StatusInvited   MembershipStatus = "invited"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrNotMember            = errors.New("user is not a member of this organization")
	ErrUserNotFound         = errors.New("user not found")
	ErrLastOwner            = errors.New("organization must have at least one owner")
	ErrInvalidRole          = errors.New("invalid membership role")
)

// Valid reports whether r is one of the known roles.
func (r MembershipRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}
