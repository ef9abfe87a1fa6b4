package forms

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// ValidationResult is the outcome of checking one set of answers.
// FieldErrors is keyed by field id, never by label.
type ValidationResult struct {
	OK          bool              `json:"ok"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// Err returns a *ValidationError for a failed result and nil otherwise.
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	return &ValidationError{FieldErrors: r.FieldErrors}
}

// rule checks one answer. present is false when the key is missing or nil.
// It returns an empty string when the answer is acceptable.
type rule func(v any, present bool) string

type compiledField struct {
	id    string
	check rule
}

// Contract is the executable validator for a fixed list of active fields.
// It is immutable and safe for concurrent use.
type Contract struct {
	fields []compiledField
}

// Compile synthesizes a contract from the active fields of a template.
// Deprecated fields are skipped even if passed in.
func Compile(fields []FormField, p Policy) (*Contract, error) {
	c := &Contract{fields: make([]compiledField, 0, len(fields))}
	for _, f := range fields {
		if f.Deprecated {
			continue
		}
		r, err := synthesizeRule(f, p)
		if err != nil {
			return nil, err
		}
		c.fields = append(c.fields, compiledField{id: f.ID, check: r})
	}
	return c, nil
}

// Check validates values against the contract. Keys that do not belong to a
// compiled field are ignored.
func (c *Contract) Check(values map[string]any) ValidationResult {
	errs := make(map[string]string)
	for _, cf := range c.fields {
		v, ok := values[cf.id]
		if msg := cf.check(v, ok && v != nil); msg != "" {
			errs[cf.id] = msg
		}
	}
	if len(errs) == 0 {
		return ValidationResult{OK: true}
	}
	return ValidationResult{OK: false, FieldErrors: errs}
}

// FieldIDs returns the ids the contract validates, in compile order.
func (c *Contract) FieldIDs() []string {
	ids := make([]string, len(c.fields))
	for i, cf := range c.fields {
		ids[i] = cf.id
	}
	return ids
}

// synthesizeRule maps a field to its rule. Every catalog type must have a
// case here; anything else is ErrUnknownFieldType.
func synthesizeRule(f FormField, p Policy) (rule, error) {
	if _, err := ConfigurationFor(f.Type); err != nil {
		return nil, err
	}

	switch f.Type {
	case FieldText, FieldTextarea:
		return stringRule(f, nil), nil
	case FieldEmployeeList:
		return stringRule(f, nil), nil
	case FieldSelect, FieldRadio:
		return stringRule(f, optionMembership(f)), nil
	case FieldNumber:
		return numberRule(f), nil
	case FieldDate:
		return dateRule(f), nil
	case FieldMultiSelect:
		return multiSelectRule(f), nil
	case FieldCheckbox:
		return checkboxRule(f), nil
	case FieldFile:
		return fileRule(f, p), nil
	}
	return nil, ErrUnknownFieldType
}

func requiredMessage(f FormField) string {
	return f.Label + " is required"
}

func stringRule(f FormField, extra func(string) string) rule {
	return func(v any, present bool) string {
		if !present {
			if f.Required {
				return requiredMessage(f)
			}
			return ""
		}
		s, ok := v.(string)
		if !ok {
			return f.Label + " must be text"
		}
		if s == "" {
			if f.Required {
				return requiredMessage(f)
			}
			return ""
		}
		if extra != nil {
			return extra(s)
		}
		return ""
	}
}

// optionMembership accepts any recorded option value. Deprecated options are
// hidden by the renderer but remain valid so older drafts still validate.
func optionMembership(f FormField) func(string) string {
	return func(s string) string {
		if !f.hasOption(s) {
			return f.Label + " has an invalid selection"
		}
		return ""
	}
}

func numberRule(f FormField) rule {
	return func(v any, present bool) string {
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			present = false
		}
		if !present {
			if f.Required {
				return requiredMessage(f)
			}
			return ""
		}
		n, ok := toFloat(v)
		if !ok {
			return f.Label + " must be a number"
		}

		var msgs []string
		if r, ok := f.Rule(RuleMin); ok && n < r.Value {
			msgs = append(msgs, ruleMessage(r))
		}
		if r, ok := f.Rule(RuleMax); ok && n > r.Value {
			msgs = append(msgs, ruleMessage(r))
		}
		return strings.Join(msgs, "; ")
	}
}

func ruleMessage(r ValidationRule) string {
	if r.Message != "" {
		return r.Message
	}
	return defaultRuleMessage(r.Kind, r.Value)
}

func dateRule(f FormField) rule {
	return func(v any, present bool) string {
		if s, ok := v.(string); ok && s == "" {
			present = false
		}
		if !present {
			if f.Required {
				return requiredMessage(f)
			}
			return ""
		}
		if _, ok := parseDate(v); !ok {
			return f.Label + " must be a valid date"
		}
		return ""
	}
}

func multiSelectRule(f FormField) rule {
	return func(v any, present bool) string {
		if !present {
			if f.Required {
				return requiredMessage(f)
			}
			return ""
		}
		vals, ok := toStrings(v)
		if !ok {
			return f.Label + " must be a list of options"
		}
		if len(vals) == 0 {
			if f.Required {
				return requiredMessage(f)
			}
			return ""
		}
		for _, s := range vals {
			if !f.hasOption(s) {
				return f.Label + " has an invalid selection"
			}
		}
		return ""
	}
}

// checkboxRule accepts false for a required checkbox; required-ness of a
// checkbox is presentational only.
func checkboxRule(f FormField) rule {
	return func(v any, present bool) string {
		if !present {
			return ""
		}
		if _, ok := v.(bool); !ok {
			return f.Label + " must be true or false"
		}
		return ""
	}
}

func fileRule(f FormField, p Policy) rule {
	enforce := p.EnforceFileRequired && f.Required
	return func(v any, present bool) string {
		if enforce && (!present || emptyAttachment(v)) {
			return requiredMessage(f)
		}
		return ""
	}
}

func emptyAttachment(v any) bool {
	switch a := v.(type) {
	case nil:
		return true
	case string:
		return a == ""
	case map[string]any:
		return len(a) == 0
	case Attachment:
		return a.Key == ""
	case *Attachment:
		return a == nil || a.Key == ""
	case []any:
		return len(a) == 0
	}
	return false
}

func toFloat(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int32:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func toStrings(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, !d.IsZero()
	case *time.Time:
		if d == nil {
			return time.Time{}, false
		}
		return *d, !d.IsZero()
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
