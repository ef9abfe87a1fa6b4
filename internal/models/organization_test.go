package models

import (
	"strings"
	"testing"

	"gorm.io/datatypes"

	"safeform/internal/forms"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Acme Construction", "acme-construction"},
		{"  North/East Crew #2 ", "north-east-crew-2"},
		{"***", "org"},
		{"", "org"},
		{strings.Repeat("a", 50), strings.Repeat("a", 40)},
	}
	for _, tt := range tests {
		if got := slugify(tt.name); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestGenerateSlug(t *testing.T) {
	s := generateSlug(6)
	if len(s) != 6 {
		t.Fatalf("expected 6 characters, got %q", s)
	}
	for _, r := range s {
		if !strings.ContainsRune("abcdefghijklmnopqrstuvwxyz0123456789", r) {
			t.Errorf("unexpected character %q in %q", r, s)
		}
	}
}

func TestOrganizationPolicy(t *testing.T) {
	yes, no := true, false
	base := forms.Policy{AllowEmptyOptionSet: false, EnforceFileRequired: true}

	tests := []struct {
		name     string
		settings OrganizationSettings
		want     forms.Policy
	}{
		{"no overrides", OrganizationSettings{}, base},
		{"allow empty", OrganizationSettings{AllowEmptyOptionSet: &yes}, forms.Policy{AllowEmptyOptionSet: true, EnforceFileRequired: true}},
		{"relax files", OrganizationSettings{EnforceFileRequired: &no}, forms.Policy{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org := &Organization{Settings: datatypes.NewJSONType(tt.settings)}
			if got := org.Policy(base); got != tt.want {
				t.Errorf("Policy() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMembershipPermissions(t *testing.T) {
	tests := []struct {
		role      MembershipRole
		status    MembershipStatus
		manage    bool
		review    bool
		canSubmit bool
	}{
		{RoleOwner, StatusActive, true, true, true},
		{RoleAdmin, StatusActive, true, true, true},
		{RoleMember, StatusActive, false, false, true},
		{RoleViewer, StatusActive, false, false, false},
		{RoleAdmin, StatusSuspended, false, false, false},
	}
	for _, tt := range tests {
		m := &OrganizationMembership{Role: tt.role, Status: tt.status}
		if m.CanManageTemplates() != tt.manage {
			t.Errorf("%s/%s CanManageTemplates = %v", tt.role, tt.status, !tt.manage)
		}
		if m.CanReview() != tt.review {
			t.Errorf("%s/%s CanReview = %v", tt.role, tt.status, !tt.review)
		}
		if m.CanSubmit() != tt.canSubmit {
			t.Errorf("%s/%s CanSubmit = %v", tt.role, tt.status, !tt.canSubmit)
		}
	}
}

func TestMembershipRoleValid(t *testing.T) {
	for _, r := range []MembershipRole{RoleOwner, RoleAdmin, RoleMember, RoleViewer} {
		if !r.Valid() {
			t.Errorf("expected %s to be valid", r)
		}
	}
	if MembershipRole("superuser").Valid() {
		t.Error("expected unknown role to be invalid")
	}
}
