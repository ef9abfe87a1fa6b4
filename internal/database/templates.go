package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"safeform/internal/forms"
)

// TemplateSummary is the list view of a form template.
type TemplateSummary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	Version         int       `json:"version"`
	FieldCount      int       `json:"field_count"`
	SubmissionCount int       `json:"submission_count"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// LoadTemplate returns an active template of the organization, deprecated
// fields included.
func (s *service) LoadTemplate(ctx context.Context, orgID uuid.UUID, templateID string) (forms.FormTemplate, error) {
	return s.loadTemplate(ctx, orgID, templateID, true)
}

// LoadTemplateForReview is LoadTemplate without the active check, so that
// submissions of a deactivated template can still be rendered and reviewed.
func (s *service) LoadTemplateForReview(ctx context.Context, orgID uuid.UUID, templateID string) (forms.FormTemplate, error) {
	return s.loadTemplate(ctx, orgID, templateID, false)
}

func (s *service) loadTemplate(ctx context.Context, orgID uuid.UUID, templateID string, activeOnly bool) (forms.FormTemplate, error) {
	query := `
		SELECT id, name, description, category, fields, version, created_by, created_at, updated_at
		FROM form_templates
		WHERE id = $1 AND organization_id = $2 AND (is_active = true OR NOT $3)`

	var (
		t      forms.FormTemplate
		fields []byte
	)
	err := s.db.QueryRowContext(ctx, query, templateID, orgID, activeOnly).Scan(
		&t.ID, &t.Name, &t.Description, &t.Category, &fields,
		&t.Version, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return forms.FormTemplate{}, fmt.Errorf("template %s: %w", templateID, ErrNotFound)
	}
	if err != nil {
		return forms.FormTemplate{}, fmt.Errorf("failed to load template: %w", err)
	}
	if err := json.Unmarshal(fields, &t.Fields); err != nil {
		return forms.FormTemplate{}, fmt.Errorf("failed to decode template fields: %w", err)
	}
	return t, nil
}

// SaveTemplate stores t if its Version still matches the stored row. A first
// save (Version 0) inserts. The returned template carries the new version and
// has every field marked persisted.
func (s *service) SaveTemplate(ctx context.Context, orgID uuid.UUID, t forms.FormTemplate) (forms.FormTemplate, error) {
	saved := t.MarkPersisted()
	fields, err := json.Marshal(saved.Fields)
	if err != nil {
		return t, fmt.Errorf("failed to encode template fields: %w", err)
	}

	if t.Version == 0 {
		query := `
			INSERT INTO form_templates (id, organization_id, name, description, category, fields,
				version, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 1, $7, NOW(), NOW())
			ON CONFLICT (id) DO NOTHING
			RETURNING version, created_at, updated_at`

		err = s.db.QueryRowContext(ctx, query,
			t.ID, orgID, t.Name, t.Description, t.Category, fields, t.CreatedBy,
		).Scan(&saved.Version, &saved.CreatedAt, &saved.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return t, fmt.Errorf("template %s: %w", t.ID, forms.ErrConcurrentModification)
		}
		if err != nil {
			return t, fmt.Errorf("failed to create template: %w", err)
		}
		return saved, nil
	}

	query := `
		UPDATE form_templates
		SET name = $1, description = $2, category = $3, fields = $4,
			version = version + 1, updated_at = NOW()
		WHERE id = $5 AND organization_id = $6 AND version = $7 AND is_active = true
		RETURNING version, updated_at`

	err = s.db.QueryRowContext(ctx, query,
		t.Name, t.Description, t.Category, fields, t.ID, orgID, t.Version,
	).Scan(&saved.Version, &saved.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM form_templates WHERE id = $1 AND organization_id = $2 AND is_active = true)`,
			t.ID, orgID,
		).Scan(&exists); err != nil {
			return t, fmt.Errorf("failed to check template: %w", err)
		}
		if !exists {
			return t, fmt.Errorf("template %s: %w", t.ID, ErrNotFound)
		}
		return t, fmt.Errorf("template %s at version %d: %w", t.ID, t.Version, forms.ErrConcurrentModification)
	}
	if err != nil {
		return t, fmt.Errorf("failed to update template: %w", err)
	}
	return saved, nil
}

// ListTemplates returns the organization's active templates, newest first.
func (s *service) ListTemplates(ctx context.Context, orgID uuid.UUID) ([]TemplateSummary, error) {
	query := `
		SELECT
			t.id, t.name, t.description, t.category, t.version,
			(SELECT COUNT(*) FROM jsonb_array_elements(t.fields) f
				WHERE NOT COALESCE((f->>'deprecated')::boolean, false)) AS field_count,
			COALESCE(sc.submission_count, 0) AS submission_count,
			t.created_by, t.created_at, t.updated_at
		FROM form_templates t
		LEFT JOIN (
			SELECT template_id, COUNT(*) AS submission_count
			FROM form_submissions
			WHERE status <> 'draft'
			GROUP BY template_id
		) sc ON t.id = sc.template_id
		WHERE t.organization_id = $1 AND t.is_active = true
		ORDER BY t.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := []TemplateSummary{}
	for rows.Next() {
		var t TemplateSummary
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Description, &t.Category, &t.Version,
			&t.FieldCount, &t.SubmissionCount,
			&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// DeactivateTemplate hides a template from listing and new submissions.
// Existing submissions keep referencing it.
func (s *service) DeactivateTemplate(ctx context.Context, orgID uuid.UUID, templateID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE form_templates
		SET is_active = false, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND is_active = true`, templateID, orgID)
	if err != nil {
		return fmt.Errorf("failed to deactivate template: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("template %s: %w", templateID, ErrNotFound)
	}
	return nil
}
