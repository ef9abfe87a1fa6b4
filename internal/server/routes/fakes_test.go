package routes

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"safeform/internal/config"
	"safeform/internal/database"
	"safeform/internal/forms"
	"safeform/internal/models"
	"safeform/internal/notify"
	"safeform/internal/storage"
)

type storedTemplate struct {
	org    uuid.UUID
	t      forms.FormTemplate
	active bool
}

type storedSubmission struct {
	org uuid.UUID
	sub forms.FormSubmission
}

// memDB is an in-memory database.Service with the same compare-and-swap
// behaviour as the Postgres one.
type memDB struct {
	mu            sync.Mutex
	users         map[int]*database.User
	templates     map[string]storedTemplate
	submissions   map[string]storedSubmission
	notifications []*database.Notification
}

var _ database.Service = (*memDB)(nil)

func newMemDB() *memDB {
	return &memDB{
		users:       map[int]*database.User{},
		templates:   map[string]storedTemplate{},
		submissions: map[string]storedSubmission{},
	}
}

func (m *memDB) Health() map[string]string { return map[string]string{"status": "up"} }
func (m *memDB) Close() error              { return nil }
func (m *memDB) RunMigrations() error      { return nil }

func (m *memDB) CreateOrUpdateUser(_ context.Context, user *database.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == 0 {
		user.ID = len(m.users) + 1
	}
	m.users[user.ID] = user
	return nil
}

func (m *memDB) GetUserByID(_ context.Context, id int) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %d: %w", id, database.ErrNotFound)
}

func (m *memDB) GetUserByEmail(_ context.Context, email string) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, database.ErrNotFound)
}

func (m *memDB) LoadTemplate(ctx context.Context, orgID uuid.UUID, id string) (forms.FormTemplate, error) {
	return m.loadTemplate(orgID, id, true)
}

func (m *memDB) LoadTemplateForReview(ctx context.Context, orgID uuid.UUID, id string) (forms.FormTemplate, error) {
	return m.loadTemplate(orgID, id, false)
}

func (m *memDB) loadTemplate(orgID uuid.UUID, id string, activeOnly bool) (forms.FormTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.templates[id]
	if !ok || st.org != orgID || (activeOnly && !st.active) {
		return forms.FormTemplate{}, fmt.Errorf("template %s: %w", id, database.ErrNotFound)
	}
	return st.t, nil
}

func (m *memDB) SaveTemplate(_ context.Context, orgID uuid.UUID, t forms.FormTemplate) (forms.FormTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := t.MarkPersisted()
	st, exists := m.templates[t.ID]
	if t.Version == 0 {
		if exists {
			return t, fmt.Errorf("template %s: %w", t.ID, forms.ErrConcurrentModification)
		}
		saved.Version = 1
		saved.CreatedAt = time.Now()
	} else {
		if !exists || st.org != orgID || !st.active {
			return t, fmt.Errorf("template %s: %w", t.ID, database.ErrNotFound)
		}
		if st.t.Version != t.Version {
			return t, fmt.Errorf("template %s: %w", t.ID, forms.ErrConcurrentModification)
		}
		saved.Version = t.Version + 1
	}
	saved.UpdatedAt = time.Now()
	m.templates[t.ID] = storedTemplate{org: orgID, t: saved, active: true}
	return saved, nil
}

func (m *memDB) ListTemplates(_ context.Context, orgID uuid.UUID) ([]database.TemplateSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.TemplateSummary{}
	for _, st := range m.templates {
		if st.org == orgID && st.active {
			out = append(out, database.TemplateSummary{
				ID: st.t.ID, Name: st.t.Name, Version: st.t.Version, FieldCount: len(st.t.ActiveFields()),
			})
		}
	}
	return out, nil
}

func (m *memDB) DeactivateTemplate(_ context.Context, orgID uuid.UUID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.templates[id]
	if !ok || st.org != orgID || !st.active {
		return fmt.Errorf("template %s: %w", id, database.ErrNotFound)
	}
	st.active = false
	m.templates[id] = st
	return nil
}

func (m *memDB) LoadSubmission(_ context.Context, orgID uuid.UUID, id string) (forms.FormSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ss, ok := m.submissions[id]
	if !ok || ss.org != orgID {
		return forms.FormSubmission{}, fmt.Errorf("submission %s: %w", id, database.ErrNotFound)
	}
	return ss.sub, nil
}

func (m *memDB) SaveSubmission(_ context.Context, orgID uuid.UUID, sub forms.FormSubmission) (forms.FormSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ss, exists := m.submissions[sub.ID]
	switch {
	case sub.Version == 0 && exists:
		return sub, fmt.Errorf("submission %s: %w", sub.ID, forms.ErrConcurrentModification)
	case sub.Version != 0 && (!exists || ss.org != orgID):
		return sub, fmt.Errorf("submission %s: %w", sub.ID, database.ErrNotFound)
	case sub.Version != 0 && ss.sub.Version != sub.Version:
		return sub, fmt.Errorf("submission %s: %w", sub.ID, forms.ErrConcurrentModification)
	}
	sub.Version++
	m.submissions[sub.ID] = storedSubmission{org: orgID, sub: sub}
	return sub, nil
}

func (m *memDB) ListSubmissions(_ context.Context, orgID uuid.UUID, f database.SubmissionFilter) ([]forms.FormSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []forms.FormSubmission{}
	for _, ss := range m.submissions {
		s := ss.sub
		if ss.org != orgID ||
			(f.TemplateID != "" && s.FormTemplateID != f.TemplateID) ||
			(f.Status != "" && s.Status != f.Status) ||
			(f.SubmittedBy != "" && s.SubmittedBy != f.SubmittedBy) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})

	if f.Offset >= len(out) {
		return []forms.FormSubmission{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memDB) CreateNotification(_ context.Context, n *database.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *memDB) GetUserNotifications(_ context.Context, userID int, limit int) ([]*database.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*database.Notification{}
	for i := len(m.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if m.notifications[i].UserID == userID {
			out = append(out, m.notifications[i])
		}
	}
	return out, nil
}

func (m *memDB) MarkNotificationAsRead(_ context.Context, id uuid.UUID, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, database.ErrNotFound)
}

// memDirectory holds a single organization.
type memDirectory struct {
	mu    sync.Mutex
	db    *memDB
	org   *models.Organization
	roles map[int]models.MembershipRole
}

var _ models.Directory = (*memDirectory)(nil)

func (d *memDirectory) UserOrganizations(_ context.Context, userID int) ([]models.UserOrganization, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	role, ok := d.roles[userID]
	if !ok {
		return []models.UserOrganization{}, nil
	}
	return []models.UserOrganization{{OrganizationID: d.org.ID, Name: d.org.Name, Slug: d.org.Slug, Role: role}}, nil
}

func (d *memDirectory) Membership(_ context.Context, userID int, slug string) (*models.Organization, *models.OrganizationMembership, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if slug != d.org.Slug {
		return nil, nil, fmt.Errorf("organization %s: %w", slug, models.ErrOrganizationNotFound)
	}
	role, ok := d.roles[userID]
	if !ok {
		return d.org, nil, fmt.Errorf("organization %s: %w", slug, models.ErrNotMember)
	}
	return d.org, &models.OrganizationMembership{
		OrganizationID: d.org.ID,
		UserID:         userID,
		Role:           role,
		Status:         models.StatusActive,
	}, nil
}

func (d *memDirectory) CreateOrganization(_ context.Context, name, description string, ownerID int) (*models.Organization, error) {
	return &models.Organization{ID: uuid.New(), Name: name, Description: description, Slug: "new-org", IsActive: true}, nil
}

func (d *memDirectory) Members(_ context.Context, orgID uuid.UUID) ([]models.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []models.Member{}
	for id, role := range d.roles {
		u := d.db.users[id]
		out = append(out, models.Member{ID: id, Email: u.Email, Name: u.Name, Role: role, Status: models.StatusActive})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *memDirectory) AddMember(ctx context.Context, orgID uuid.UUID, email string, role models.MembershipRole) (*models.Member, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidRole, role)
	}
	u, err := d.db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", email, models.ErrUserNotFound)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles[u.ID] = role
	return &models.Member{ID: u.ID, Email: u.Email, Name: u.Name, Role: role, Status: models.StatusActive}, nil
}

func (d *memDirectory) Reviewers(_ context.Context, orgID uuid.UUID) ([]int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []int
	for id, role := range d.roles {
		if role == models.RoleOwner || role == models.RoleAdmin {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (d *memDirectory) UpdateOrganizationSettings(_ context.Context, org *models.Organization, settings models.OrganizationSettings) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	org.Settings = datatypes.NewJSONType(settings)
	return nil
}

// memStore keeps attachments in memory.
type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	encrypted bool
}

var _ storage.AttachmentStore = (*memStore)(nil)

func (s *memStore) UploadAttachment(_ context.Context, ref storage.AttachmentRef, filename string, r io.Reader) (forms.Attachment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return forms.Attachment{}, err
	}
	contentType, ext, err := storage.Sniff(data)
	if err != nil {
		return forms.Attachment{}, err
	}
	key := ref.Key(strings.TrimSuffix(filename, ext) + ext)
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return forms.Attachment{Key: key, Name: filename, ContentType: contentType, Size: int64(len(data))}, nil
}

func (s *memStore) DownloadAttachment(_ context.Context, key string) (*storage.DownloadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("attachment %s: %w", key, storage.ErrAttachmentNotFound)
	}
	return &storage.DownloadResult{Data: bytes.Clone(data), FileSize: int64(len(data)), MimeType: "text/plain", Name: "notes.txt"}, nil
}

func (s *memStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://bucket.example/" + key + "?sig=test", nil
}

func (s *memStore) DeleteAttachment(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) Encrypted() bool { return s.encrypted }

// fakeServer satisfies ServerInterface.
type fakeServer struct {
	cfg       *config.Config
	db        *memDB
	directory *memDirectory
	store     storage.AttachmentStore
	notifier  *notify.Notifier
}

func (s *fakeServer) GetDB() database.Service             { return s.db }
func (s *fakeServer) GetDirectory() models.Directory      { return s.directory }
func (s *fakeServer) GetStorage() storage.AttachmentStore { return s.store }
func (s *fakeServer) GetNotifier() *notify.Notifier       { return s.notifier }
func (s *fakeServer) GetConfig() *config.Config           { return s.cfg }
