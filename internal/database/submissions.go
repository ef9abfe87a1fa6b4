package database

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"safeform/internal/forms"
)

// SubmissionFilter narrows ListSubmissions. Zero values match everything.
type SubmissionFilter struct {
	TemplateID  string
	Status      forms.SubmissionStatus
	SubmittedBy string
	Limit       int
	Offset      int
}

const submissionColumns = `id, version, template_id, template_version, submitted_by, submitted_at, status, answers, history`

// LoadSubmission returns one submission of the organization.
func (s *service) LoadSubmission(ctx context.Context, orgID uuid.UUID, submissionID string) (forms.FormSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM form_submissions WHERE id = $1 AND organization_id = $2`

	sub, err := scanSubmission(s.db.QueryRowContext(ctx, query, submissionID, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return forms.FormSubmission{}, fmt.Errorf("submission %s: %w", submissionID, ErrNotFound)
	}
	if err != nil {
		return forms.FormSubmission{}, fmt.Errorf("failed to load submission: %w", err)
	}
	return sub, nil
}

// SaveSubmission stores sub if its Version still matches the stored row. A
// new submission (Version 0) is inserted. The returned submission carries the
// new version.
func (s *service) SaveSubmission(ctx context.Context, orgID uuid.UUID, sub forms.FormSubmission) (forms.FormSubmission, error) {
	answers, err := json.Marshal(sub.Values)
	if err != nil {
		return sub, fmt.Errorf("failed to encode answers: %w", err)
	}
	history, err := json.Marshal(sub.History)
	if err != nil {
		return sub, fmt.Errorf("failed to encode history: %w", err)
	}

	saved := sub
	if sub.Version == 0 {
		query := `
			INSERT INTO form_submissions (id, organization_id, template_id, template_version,
				submitted_by, submitted_at, status, answers, history, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, NOW())
			ON CONFLICT (id) DO NOTHING
			RETURNING version`

		err = s.db.QueryRowContext(ctx, query,
			sub.ID, orgID, sub.FormTemplateID, sub.TemplateVersion,
			sub.SubmittedBy, sub.SubmittedAt, string(sub.Status), answers, history,
		).Scan(&saved.Version)
		if errors.Is(err, sql.ErrNoRows) {
			return sub, fmt.Errorf("submission %s: %w", sub.ID, forms.ErrConcurrentModification)
		}
		if err != nil {
			return sub, fmt.Errorf("failed to create submission: %w", err)
		}
		return saved, nil
	}

	query := `
		UPDATE form_submissions
		SET template_version = $1, submitted_at = $2, status = $3, answers = $4, history = $5,
			version = version + 1, updated_at = NOW()
		WHERE id = $6 AND organization_id = $7 AND version = $8
		RETURNING version`

	err = s.db.QueryRowContext(ctx, query,
		sub.TemplateVersion, sub.SubmittedAt, string(sub.Status), answers, history,
		sub.ID, orgID, sub.Version,
	).Scan(&saved.Version)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM form_submissions WHERE id = $1 AND organization_id = $2)`,
			sub.ID, orgID,
		).Scan(&exists); err != nil {
			return sub, fmt.Errorf("failed to check submission: %w", err)
		}
		if !exists {
			return sub, fmt.Errorf("submission %s: %w", sub.ID, ErrNotFound)
		}
		return sub, fmt.Errorf("submission %s at version %d: %w", sub.ID, sub.Version, forms.ErrConcurrentModification)
	}
	if err != nil {
		return sub, fmt.Errorf("failed to update submission: %w", err)
	}
	return saved, nil
}

// ListSubmissions returns the organization's submissions, newest first.
func (s *service) ListSubmissions(ctx context.Context, orgID uuid.UUID, filter SubmissionFilter) ([]forms.FormSubmission, error) {
	where := []string{"organization_id = $1"}
	args := []any{orgID}

	if filter.TemplateID != "" {
		args = append(args, filter.TemplateID)
		where = append(where, fmt.Sprintf("template_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.SubmittedBy != "" {
		args = append(args, filter.SubmittedBy)
		where = append(where, fmt.Sprintf("submitted_by = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`SELECT %s FROM form_submissions WHERE %s ORDER BY submitted_at DESC, id LIMIT $%d OFFSET $%d`,
		submissionColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	subs := []forms.FormSubmission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (forms.FormSubmission, error) {
	var (
		sub              forms.FormSubmission
		status           string
		answers, history []byte
	)
	if err := row.Scan(
		&sub.ID, &sub.Version, &sub.FormTemplateID, &sub.TemplateVersion, &sub.SubmittedBy,
		&sub.SubmittedAt, &status, &answers, &history,
	); err != nil {
		return forms.FormSubmission{}, err
	}
	sub.Status = forms.SubmissionStatus(status)

	// answers keep numbers as json.Number so validation and display see the
	// submitted precision
	dec := json.NewDecoder(bytes.NewReader(answers))
	dec.UseNumber()
	if err := dec.Decode(&sub.Values); err != nil {
		return forms.FormSubmission{}, fmt.Errorf("decode answers: %w", err)
	}
	if err := json.Unmarshal(history, &sub.History); err != nil {
		return forms.FormSubmission{}, fmt.Errorf("decode history: %w", err)
	}
	return sub, nil
}
