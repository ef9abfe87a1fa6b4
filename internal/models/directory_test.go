package models

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"safeform/internal/database"
)

var testDB *DB
var testUsers database.Service

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("safeform_models"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		log.Fatalf("could not start postgres container for tests: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("failed to get connection string: %v", err)
	}

	testUsers = database.New(dsn)
	if err := testUsers.RunMigrations(); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	testDB, err = NewDB(dsn)
	if err != nil {
		log.Fatalf("failed to open gorm: %v", err)
	}

	code := m.Run()

	testDB.Close()
	testUsers.Close()
	if err := container.Terminate(ctx); err != nil {
		log.Printf("could not teardown postgres container: %v", err)
	}
	os.Exit(code)
}

func signUp(t *testing.T, email string) *database.User {
	t.Helper()
	u := &database.User{Provider: "google", ProviderID: "pid-" + email, Email: email, Name: email}
	if err := testUsers.CreateOrUpdateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateOrUpdateUser failed: %v", err)
	}
	return u
}

func TestCreateOrganizationAndMembership(t *testing.T) {
	ctx := context.Background()
	owner := signUp(t, "owner@acme.test")

	org, err := testDB.CreateOrganization(ctx, "Acme Construction", "general contractor", owner.ID)
	if err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}
	if org.Slug == "" || org.ID.String() == "" {
		t.Fatalf("expected slug and id to be set, got %+v", org)
	}

	gotOrg, membership, err := testDB.Membership(ctx, owner.ID, org.Slug)
	if err != nil {
		t.Fatalf("Membership failed: %v", err)
	}
	if gotOrg.ID != org.ID || membership.Role != RoleOwner {
		t.Errorf("unexpected membership %+v in %+v", membership, gotOrg)
	}

	stranger := signUp(t, "stranger@acme.test")
	if _, _, err := testDB.Membership(ctx, stranger.ID, org.Slug); !errors.Is(err, ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
	if _, _, err := testDB.Membership(ctx, owner.ID, "no-such-org"); !errors.Is(err, ErrOrganizationNotFound) {
		t.Errorf("expected ErrOrganizationNotFound, got %v", err)
	}

	orgs, err := testDB.UserOrganizations(ctx, owner.ID)
	if err != nil {
		t.Fatalf("UserOrganizations failed: %v", err)
	}
	if len(orgs) != 1 || orgs[0].Slug != org.Slug || orgs[0].Role != RoleOwner {
		t.Errorf("unexpected organizations %+v", orgs)
	}
}

func TestAddMemberAndReviewers(t *testing.T) {
	ctx := context.Background()
	owner := signUp(t, "owner@globex.test")
	foreman := signUp(t, "foreman@globex.test")
	worker := signUp(t, "worker@globex.test")

	org, err := testDB.CreateOrganization(ctx, "Globex", "", owner.ID)
	if err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}

	if _, err := testDB.AddMember(ctx, org.ID, foreman.Email, RoleAdmin); err != nil {
		t.Fatalf("AddMember admin failed: %v", err)
	}
	if _, err := testDB.AddMember(ctx, org.ID, worker.Email, RoleMember); err != nil {
		t.Fatalf("AddMember member failed: %v", err)
	}
	if _, err := testDB.AddMember(ctx, org.ID, "nobody@globex.test", RoleMember); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := testDB.AddMember(ctx, org.ID, worker.Email, "superuser"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}

	reviewers, err := testDB.Reviewers(ctx, org.ID)
	if err != nil {
		t.Fatalf("Reviewers failed: %v", err)
	}
	if fmt.Sprint(reviewers) != fmt.Sprint([]int{owner.ID, foreman.ID}) {
		t.Errorf("expected owner and admin as reviewers, got %v", reviewers)
	}

	members, err := testDB.Members(ctx, org.ID)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 3 {
		t.Errorf("expected 3 members, got %d", len(members))
	}

	// demoting the only owner is refused
	if _, err := testDB.AddMember(ctx, org.ID, owner.Email, RoleAdmin); !errors.Is(err, ErrLastOwner) {
		t.Errorf("expected ErrLastOwner, got %v", err)
	}

	// promoting the worker changes the role in place
	m, err := testDB.AddMember(ctx, org.ID, worker.Email, RoleAdmin)
	if err != nil {
		t.Fatalf("AddMember promote failed: %v", err)
	}
	if m.Role != RoleAdmin {
		t.Errorf("expected admin role, got %s", m.Role)
	}
}

func TestUpdateSettings(t *testing.T) {
	ctx := context.Background()
	owner := signUp(t, "owner@initech.test")
	org, err := testDB.CreateOrganization(ctx, "Initech", "", owner.ID)
	if err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}

	yes := true
	if err := testDB.UpdateOrganizationSettings(ctx, org, OrganizationSettings{EnforceFileRequired: &yes}); err != nil {
		t.Fatalf("UpdateOrganizationSettings failed: %v", err)
	}

	reloaded, err := testDB.Organizations.GetBySlug(org.Slug)
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	s := reloaded.Settings.Data()
	if s.EnforceFileRequired == nil || !*s.EnforceFileRequired || s.AllowEmptyOptionSet != nil {
		t.Errorf("unexpected settings after reload: %+v", s)
	}
}
