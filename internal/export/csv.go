// Package export writes submissions out in tabular form using the same
// display rules as the rendered submission view.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"safeform/internal/forms"
)

// Options tune an export. The zero value is usable.
type Options struct {
	// SubmitterName resolves a submitter id for display. Nil prints the id.
	SubmitterName func(id string) string
}

var fixedColumns = []string{"submission_id", "status", "submitted_by", "submitted_at", "template_version"}

// Columns returns the field columns of an export: active fields in display
// order, then deprecated fields that at least one submission answered.
func Columns(t forms.FormTemplate, subs []forms.FormSubmission) []forms.FormField {
	cols := t.ActiveFields()

	var deprecated []forms.FormField
	for _, f := range t.Fields {
		if !f.Deprecated {
			continue
		}
		for _, s := range subs {
			if _, ok := s.Values[f.ID]; ok {
				deprecated = append(deprecated, f)
				break
			}
		}
	}
	sort.SliceStable(deprecated, func(i, j int) bool { return deprecated[i].Order < deprecated[j].Order })

	return append(cols, deprecated...)
}

// WriteCSV writes a header row and one row per submission.
func WriteCSV(w io.Writer, t forms.FormTemplate, subs []forms.FormSubmission, opts Options) error {
	cols := Columns(t, subs)
	cw := csv.NewWriter(w)

	header := append([]string{}, fixedColumns...)
	for _, f := range cols {
		label := f.Label
		if f.Deprecated {
			label += " (retired)"
		}
		header = append(header, label)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, s := range subs {
		submitter := s.SubmittedBy
		if opts.SubmitterName != nil {
			submitter = opts.SubmitterName(s.SubmittedBy)
		}

		row := []string{
			s.ID,
			string(s.Status),
			submitter,
			s.SubmittedAt.UTC().Format(time.RFC3339),
			fmt.Sprint(s.TemplateVersion),
		}
		for _, f := range cols {
			v, ok := s.Values[f.ID]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, forms.DisplayValue(f, v))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write submission %s: %w", s.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
