package forms

import (
	"fmt"
	"sort"
	"strings"
)

// DateDisplayLayout is the layout used to show date answers.
const DateDisplayLayout = "Jan 2, 2006"

// RenderedAnswer is one row of a submission as shown to a reviewer.
type RenderedAnswer struct {
	FieldID    string    `json:"field_id"`
	Label      string    `json:"label"`
	Type       FieldType `json:"type"`
	Value      any       `json:"value"`
	Display    string    `json:"display"`
	Deprecated bool      `json:"deprecated,omitempty"`
}

// Render joins sub's answers with t. Active fields come first in display
// order. Answers to fields deprecated since the submission follow, labelled
// from the stored definition. Keys with no definition in t at all are
// omitted.
func Render(sub FormSubmission, t FormTemplate) []RenderedAnswer {
	active := t.ActiveFields()
	out := make([]RenderedAnswer, 0, len(active)+len(sub.Values))
	for _, f := range active {
		v := sub.Values[f.ID]
		out = append(out, RenderedAnswer{
			FieldID: f.ID,
			Label:   f.Label,
			Type:    f.Type,
			Value:   v,
			Display: DisplayValue(f, v),
		})
	}

	var legacy []FormField
	for _, f := range t.Fields {
		if !f.Deprecated {
			continue
		}
		if _, ok := sub.Values[f.ID]; ok {
			legacy = append(legacy, f)
		}
	}
	sort.SliceStable(legacy, func(i, j int) bool { return legacy[i].Order < legacy[j].Order })
	for _, f := range legacy {
		v := sub.Values[f.ID]
		out = append(out, RenderedAnswer{
			FieldID:    f.ID,
			Label:      f.Label,
			Type:       f.Type,
			Value:      v,
			Display:    DisplayValue(f, v),
			Deprecated: true,
		})
	}
	return out
}

// DisplayValue formats one answer for humans. Option values resolve to their
// labels whether or not the option has since been deprecated.
func DisplayValue(f FormField, v any) string {
	if v == nil {
		return ""
	}

	switch f.Type {
	case FieldSelect, FieldRadio:
		if s, ok := v.(string); ok {
			return optionLabel(f, s)
		}
	case FieldMultiSelect:
		if vals, ok := toStrings(v); ok {
			labels := make([]string, len(vals))
			for i, s := range vals {
				labels[i] = optionLabel(f, s)
			}
			return strings.Join(labels, ", ")
		}
	case FieldCheckbox:
		if b, ok := v.(bool); ok {
			if b {
				return "Yes"
			}
			return "No"
		}
	case FieldDate:
		if d, ok := parseDate(v); ok {
			return d.Format(DateDisplayLayout)
		}
	case FieldNumber:
		if n, ok := toFloat(v); ok {
			return formatNumber(n)
		}
	case FieldFile:
		return attachmentName(v)
	}

	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func optionLabel(f FormField, value string) string {
	if o, ok := f.Option(value); ok && o.Label != "" {
		return o.Label
	}
	return value
}

func attachmentName(v any) string {
	switch a := v.(type) {
	case Attachment:
		return a.Name
	case *Attachment:
		if a == nil {
			return ""
		}
		return a.Name
	case string:
		return a
	case map[string]any:
		if name, ok := a["name"].(string); ok {
			return name
		}
		if key, ok := a["key"].(string); ok {
			return key
		}
		return ""
	case []any:
		names := make([]string, 0, len(a))
		for _, item := range a {
			if n := attachmentName(item); n != "" {
				names = append(names, n)
			}
		}
		return strings.Join(names, ", ")
	}
	return fmt.Sprint(v)
}
