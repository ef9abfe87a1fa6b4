// Package notify records in-app notifications when submissions move through
// review.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safeform/internal/database"
	"safeform/internal/forms"
	"safeform/internal/logger"
	"safeform/internal/metrics"
)

type Store interface {
	CreateNotification(ctx context.Context, n *database.Notification) error
}

type ReviewerLookup interface {
	Reviewers(ctx context.Context, orgID uuid.UUID) ([]int, error)
}

type Notifier struct {
	store     Store
	reviewers ReviewerLookup
}

func New(store Store, reviewers ReviewerLookup) *Notifier {
	return &Notifier{store: store, reviewers: reviewers}
}

type payload struct {
	OrganizationID uuid.UUID              `json:"organization_id"`
	SubmissionID   string                 `json:"submission_id"`
	TemplateID     string                 `json:"template_id"`
	Status         forms.SubmissionStatus `json:"status"`
}

// SubmissionChanged notifies whoever needs to act on sub's current status.
// A submitted form goes to every reviewer but the submitter; an approval or
// rejection goes back to the submitter. Other statuses notify nobody.
func (n *Notifier) SubmissionChanged(ctx context.Context, orgID uuid.UUID, t forms.FormTemplate, sub forms.FormSubmission) error {
	data, err := json.Marshal(payload{
		OrganizationID: orgID,
		SubmissionID:   sub.ID,
		TemplateID:     t.ID,
		Status:         sub.Status,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification data: %w", err)
	}

	var recipients []int
	var kind, title, message string

	switch sub.Status {
	case forms.StatusSubmitted:
		reviewers, err := n.reviewers.Reviewers(ctx, orgID)
		if err != nil {
			return err
		}
		for _, id := range reviewers {
			if strconv.Itoa(id) != sub.SubmittedBy {
				recipients = append(recipients, id)
			}
		}
		kind = database.NotificationSubmissionReceived
		title = "New submission"
		message = fmt.Sprintf("A new %s submission is waiting for review.", t.Name)
	case forms.StatusApproved, forms.StatusRejected:
		submitter, err := strconv.Atoi(sub.SubmittedBy)
		if err != nil {
			logger.Warn("submitter is not a user id, skipping notification",
				zap.String("submission_id", sub.ID), zap.String("submitted_by", sub.SubmittedBy))
			return nil
		}
		recipients = []int{submitter}
		kind = database.NotificationSubmissionApproved
		title = "Submission approved"
		if sub.Status == forms.StatusRejected {
			kind = database.NotificationSubmissionRejected
			title = "Submission rejected"
		}
		message = fmt.Sprintf("Your %s submission was %s.", t.Name, sub.Status)
	default:
		return nil
	}

	var errs []error
	for _, userID := range recipients {
		err := n.store.CreateNotification(ctx, &database.Notification{
			UserID:  userID,
			Type:    kind,
			Title:   title,
			Message: message,
			Data:    string(data),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", userID, err))
			continue
		}
		metrics.NotificationsSent.WithLabelValues(kind).Inc()
	}

	logger.Debug("submission notifications recorded",
		zap.String("submission_id", sub.ID),
		zap.String("type", kind),
		zap.Int("recipients", len(recipients)),
		zap.Int("failed", len(errs)))

	return errors.Join(errs...)
}
