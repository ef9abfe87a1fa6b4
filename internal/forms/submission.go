package forms

import (
	"errors"
	"fmt"
	"time"
)

var ErrTemplateMismatch = errors.New("submission belongs to a different template")

// SubmissionStatus is the review state of a submission.
type SubmissionStatus string

const (
	StatusDraft     SubmissionStatus = "draft"
	StatusSubmitted SubmissionStatus = "submitted"
	StatusInReview  SubmissionStatus = "inReview"
	StatusApproved  SubmissionStatus = "approved"
	StatusRejected  SubmissionStatus = "rejected"
)

// transitions lists the statuses a reviewer may move a submission to.
// Leaving draft is not a review action and only happens through SubmitDraft.
var transitions = map[SubmissionStatus][]SubmissionStatus{
	StatusDraft:     nil,
	StatusSubmitted: {StatusInReview},
	StatusInReview:  {StatusApproved, StatusRejected},
	StatusApproved:  {StatusInReview, StatusRejected},
	StatusRejected:  {StatusInReview, StatusApproved},
}

// Valid reports whether s is a known status.
func (s SubmissionStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s ends a review. Terminal statuses can still be
// corrected by a reviewer.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ParseStatus converts a wire value into a SubmissionStatus.
func ParseStatus(s string) (SubmissionStatus, error) {
	st := SubmissionStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown submission status %q", s)
	}
	return st, nil
}

// CanTransition reports whether a reviewer may move a submission from one
// status to another.
func CanTransition(from, to SubmissionStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s by a reviewer.
func NextStatuses(s SubmissionStatus) []SubmissionStatus {
	next := transitions[s]
	out := make([]SubmissionStatus, len(next))
	copy(out, next)
	return out
}

// Attachment describes an uploaded file answer. The bytes live in object
// storage under Key.
type Attachment struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// StatusChange is one entry of a submission's review history. From is empty
// for the entry that created the submission.
type StatusChange struct {
	From      SubmissionStatus `json:"from,omitempty"`
	To        SubmissionStatus `json:"to"`
	ChangedBy string           `json:"changed_by"`
	At        time.Time        `json:"at"`
}

// FormSubmission is one respondent's answers against a template version.
// Values is keyed by field id. After creation only the status and history
// change. Version is 0 until the first save and is compared on every later
// one.
type FormSubmission struct {
	ID              string           `json:"id"`
	Version         int              `json:"version"`
	FormTemplateID  string           `json:"form_template_id"`
	TemplateVersion int              `json:"template_version"`
	SubmittedBy     string           `json:"submitted_by"`
	SubmittedAt     time.Time        `json:"submitted_at"`
	Status          SubmissionStatus `json:"status"`
	Values          map[string]any   `json:"values"`
	History         []StatusChange   `json:"history,omitempty"`
}

var now = func() time.Time { return time.Now().UTC() }

// Submit validates values against the active fields of t and, on success,
// returns a new submitted record holding only the answers to active fields.
// On failure the error is a *ValidationError and no record is produced.
func Submit(t FormTemplate, submittedBy string, values map[string]any, p Policy) (FormSubmission, error) {
	active := t.ActiveFields()
	contract, err := Compile(active, p)
	if err != nil {
		return FormSubmission{}, err
	}
	if err := contract.Check(values).Err(); err != nil {
		return FormSubmission{}, err
	}
	return newSubmission(t, active, submittedBy, values, StatusSubmitted), nil
}

// SaveDraft stores partial answers without validating them.
func SaveDraft(t FormTemplate, submittedBy string, values map[string]any) FormSubmission {
	return newSubmission(t, t.ActiveFields(), submittedBy, values, StatusDraft)
}

// SubmitDraft validates a draft against the current template and moves it to
// submitted. When values is nil the draft's own answers are used.
func SubmitDraft(t FormTemplate, draft FormSubmission, values map[string]any, p Policy) (FormSubmission, error) {
	if draft.Status != StatusDraft {
		return draft, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, draft.Status, StatusSubmitted)
	}
	if draft.FormTemplateID != t.ID {
		return draft, fmt.Errorf("%w: %s", ErrTemplateMismatch, draft.FormTemplateID)
	}
	if values == nil {
		values = draft.Values
	}

	active := t.ActiveFields()
	contract, err := Compile(active, p)
	if err != nil {
		return draft, err
	}
	if err := contract.Check(values).Err(); err != nil {
		return draft, err
	}

	at := now()
	out := draft.clone()
	out.TemplateVersion = t.Version
	out.SubmittedAt = at
	out.Status = StatusSubmitted
	out.Values = restrictValues(active, values)
	out.History = append(out.History, StatusChange{
		From:      StatusDraft,
		To:        StatusSubmitted,
		ChangedBy: draft.SubmittedBy,
		At:        at,
	})
	return out, nil
}

// Transition moves sub to status to on behalf of reviewer. Illegal moves fail
// with ErrInvalidTransition and sub is returned unchanged.
func Transition(sub FormSubmission, to SubmissionStatus, reviewer string) (FormSubmission, error) {
	if !CanTransition(sub.Status, to) {
		return sub, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sub.Status, to)
	}
	out := sub.clone()
	out.Status = to
	out.History = append(out.History, StatusChange{
		From:      sub.Status,
		To:        to,
		ChangedBy: reviewer,
		At:        now(),
	})
	return out, nil
}

func newSubmission(t FormTemplate, active []FormField, submittedBy string, values map[string]any, status SubmissionStatus) FormSubmission {
	at := now()
	return FormSubmission{
		ID:              newID(),
		FormTemplateID:  t.ID,
		TemplateVersion: t.Version,
		SubmittedBy:     submittedBy,
		SubmittedAt:     at,
		Status:          status,
		Values:          restrictValues(active, values),
		History:         []StatusChange{{To: status, ChangedBy: submittedBy, At: at}},
	}
}

func restrictValues(active []FormField, values map[string]any) map[string]any {
	out := make(map[string]any, len(active))
	for _, f := range active {
		if v, ok := values[f.ID]; ok {
			out[f.ID] = v
		}
	}
	return out
}

func (s FormSubmission) clone() FormSubmission {
	out := s
	out.Values = make(map[string]any, len(s.Values))
	for k, v := range s.Values {
		out.Values[k] = v
	}
	out.History = make([]StatusChange, len(s.History))
	copy(out.History, s.History)
	return out
}
