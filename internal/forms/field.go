package forms

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

var (
	ErrOptionsNotSupported   = errors.New("field type does not take options")
	ErrInvalidValidationRule = errors.New("invalid validation rule")
)

// newID assigns field ids. Ids are opaque and never reused.
var newID = uuid.NewString

// FieldOption is one choice of a select, multiselect or radio field.
// Value is unique among all options of the field, deprecated ones included.
type FieldOption struct {
	Value      string `json:"value"`
	Label      string `json:"label"`
	Deprecated bool   `json:"deprecated,omitempty"`
}

// RuleKind names a numeric bound.
type RuleKind string

const (
	RuleMin RuleKind = "min"
	RuleMax RuleKind = "max"
)

// ValidationRule bounds a number field inclusively. A field holds at most one
// rule per kind.
type ValidationRule struct {
	Kind    RuleKind `json:"kind"`
	Value   float64  `json:"value"`
	Message string   `json:"message"`
}

// FormField is a single field definition within a template.
type FormField struct {
	ID          string           `json:"id"`
	Type        FieldType        `json:"type"`
	Label       string           `json:"label"`
	Placeholder string           `json:"placeholder,omitempty"`
	HelpText    string           `json:"help_text,omitempty"`
	Required    bool             `json:"required"`
	Order       int              `json:"order"`
	Options     []FieldOption    `json:"options,omitempty"`
	Validation  []ValidationRule `json:"validation,omitempty"`
	Deprecated  bool             `json:"deprecated,omitempty"`

	// Persisted is set once the field has been saved as part of a template.
	// From then on its type is frozen and removals become deprecations.
	Persisted bool `json:"persisted,omitempty"`
}

// FieldPatch is a partial update. Nil members are left unchanged; a non-nil
// empty Options or Validation slice clears them.
type FieldPatch struct {
	Type        *FieldType       `json:"type,omitempty"`
	Label       *string          `json:"label,omitempty"`
	Placeholder *string          `json:"placeholder,omitempty"`
	HelpText    *string          `json:"help_text,omitempty"`
	Required    *bool            `json:"required,omitempty"`
	Options     []FieldOption    `json:"options,omitempty"`
	Validation  []ValidationRule `json:"validation,omitempty"`
}

// NewField creates an unsaved field of type t at the given active position.
// Choice fields are seeded with one default option so they render immediately.
func NewField(t FieldType, label string, order int) (FormField, error) {
	cfg, err := ConfigurationFor(t)
	if err != nil {
		return FormField{}, err
	}
	if label == "" {
		label = cfg.DisplayName
	}
	return FormField{
		ID:      newID(),
		Type:    t,
		Label:   label,
		Order:   order,
		Options: cfg.DefaultOptions,
	}, nil
}

// UpdateField applies patch to f. A type change on a persisted field fails
// with ErrFieldTypeImmutable and nothing is applied. Options of a persisted
// field missing from patch.Options are deprecated and reported as warnings,
// subject to the same last-option rule as RemoveOption.
func UpdateField(f FormField, patch FieldPatch, p Policy) (FormField, []Warning, error) {
	if f.Deprecated {
		return f, nil, fmt.Errorf("%w: %s", ErrFieldDeprecated, f.ID)
	}
	out := f.clone()

	if patch.Type != nil && *patch.Type != f.Type {
		if f.Persisted {
			return f, nil, fmt.Errorf("%w: field %s is %s", ErrFieldTypeImmutable, f.ID, f.Type)
		}
		cfg, err := ConfigurationFor(*patch.Type)
		if err != nil {
			return f, nil, err
		}
		out.Type = cfg.Type
		if !cfg.SupportsOptions {
			out.Options = nil
		} else if len(out.activeOptions()) == 0 {
			out.Options = cfg.DefaultOptions
		}
		if !cfg.SupportsNumericValidation {
			out.Validation = nil
		}
	}

	if patch.Label != nil {
		out.Label = *patch.Label
	}
	if patch.Placeholder != nil {
		out.Placeholder = *patch.Placeholder
	}
	if patch.HelpText != nil {
		out.HelpText = *patch.HelpText
	}
	if patch.Required != nil {
		out.Required = *patch.Required
	}

	var warnings []Warning
	if patch.Options != nil {
		cfg, _ := ConfigurationFor(out.Type)
		if !cfg.SupportsOptions {
			return f, nil, fmt.Errorf("%w: %s", ErrOptionsNotSupported, out.Type)
		}
		merged, dropped, err := mergeOptions(out.Options, patch.Options, out.Persisted)
		if err != nil {
			return f, nil, err
		}
		out.Options = merged
		warnings, err = optionRemovalWarnings(f, out, dropped, p)
		if err != nil {
			return f, nil, err
		}
	}

	if patch.Validation != nil {
		out.Validation = nil
		for _, r := range patch.Validation {
			v := r.Value
			next, err := setRule(out, r.Kind, &v, r.Message)
			if err != nil {
				return f, nil, err
			}
			out = next
		}
	}

	return out, warnings, nil
}

// DuplicateField copies f's configuration into a new unsaved field placed at
// order. Only active options are carried over.
func DuplicateField(f FormField, order int) FormField {
	out := f.clone()
	out.ID = newID()
	out.Label = f.Label + " (Copy)"
	out.Order = order
	out.Deprecated = false
	out.Persisted = false
	if out.Options != nil {
		out.Options = f.activeOptions()
	}
	return out
}

// AddOption appends an option with a fresh unique value and an empty label.
func AddOption(f FormField) (FormField, error) {
	if f.Deprecated {
		return f, fmt.Errorf("%w: %s", ErrFieldDeprecated, f.ID)
	}
	cfg, err := ConfigurationFor(f.Type)
	if err != nil {
		return f, err
	}
	if !cfg.SupportsOptions {
		return f, fmt.Errorf("%w: %s", ErrOptionsNotSupported, f.Type)
	}

	out := f.clone()
	n := len(out.Options) + 1
	for out.hasOption("option_" + strconv.Itoa(n)) {
		n++
	}
	out.Options = append(out.Options, FieldOption{Value: "option_" + strconv.Itoa(n)})
	return out, nil
}

// RemoveOption deletes an option from an unsaved field. On a persisted field
// the option is deprecated instead so recorded answers stay readable.
func RemoveOption(f FormField, value string, p Policy) (FormField, []Warning, error) {
	if f.Deprecated {
		return f, nil, fmt.Errorf("%w: %s", ErrFieldDeprecated, f.ID)
	}
	idx := -1
	for i, o := range f.Options {
		if o.Value == value {
			idx = i
			break
		}
	}
	if idx < 0 {
		return f, nil, fmt.Errorf("%w: %q on field %s", ErrOptionNotFound, value, f.ID)
	}

	out := f.clone()
	if !f.Persisted {
		out.Options = append(out.Options[:idx], out.Options[idx+1:]...)
		return out, nil, nil
	}
	if f.Options[idx].Deprecated {
		return out, nil, nil
	}

	out.Options[idx].Deprecated = true
	warnings, err := optionRemovalWarnings(f, out, []string{value}, p)
	if err != nil {
		return f, nil, err
	}
	return out, warnings, nil
}

// SetValidationRule upserts the rule of the given kind, or removes it when
// value is nil.
func SetValidationRule(f FormField, kind RuleKind, value *float64) (FormField, error) {
	if f.Deprecated {
		return f, fmt.Errorf("%w: %s", ErrFieldDeprecated, f.ID)
	}
	return setRule(f.clone(), kind, value, "")
}

// DeprecateField marks f deprecated. There is no way back.
func DeprecateField(f FormField) FormField {
	out := f.clone()
	out.Deprecated = true
	return out
}

func setRule(f FormField, kind RuleKind, value *float64, message string) (FormField, error) {
	if kind != RuleMin && kind != RuleMax {
		return f, fmt.Errorf("%w: unknown kind %q", ErrInvalidValidationRule, string(kind))
	}

	rules := make([]ValidationRule, 0, len(f.Validation)+1)
	for _, r := range f.Validation {
		if r.Kind != kind {
			rules = append(rules, r)
		}
	}
	if value != nil {
		if message == "" {
			message = defaultRuleMessage(kind, *value)
		}
		rules = append(rules, ValidationRule{Kind: kind, Value: *value, Message: message})
	}
	if len(rules) == 0 {
		rules = nil
	}
	f.Validation = rules
	return f, nil
}

func defaultRuleMessage(kind RuleKind, v float64) string {
	if kind == RuleMin {
		return "Value must be at least " + formatNumber(v)
	}
	return "Value must be at most " + formatNumber(v)
}

// mergeOptions replaces current with next. For persisted fields, options
// missing from next are kept as deprecated and deprecation is never undone.
func mergeOptions(current, next []FieldOption, persisted bool) ([]FieldOption, []string, error) {
	seen := make(map[string]bool, len(next))
	for _, o := range next {
		if seen[o.Value] {
			return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateOptionValue, o.Value)
		}
		seen[o.Value] = true
	}

	out := make([]FieldOption, len(next))
	copy(out, next)
	if !persisted {
		return out, nil, nil
	}

	wasDeprecated := make(map[string]bool, len(current))
	for _, o := range current {
		wasDeprecated[o.Value] = o.Deprecated
	}
	for i := range out {
		if wasDeprecated[out[i].Value] {
			out[i].Deprecated = true
		}
	}

	var dropped []string
	for _, o := range current {
		if seen[o.Value] {
			continue
		}
		o.Deprecated = true
		out = append(out, o)
		if !wasDeprecated[o.Value] {
			dropped = append(dropped, o.Value)
		}
	}
	return out, dropped, nil
}

// optionRemovalWarnings reports the options of before that an edit to after
// deprecated. Leaving a persisted active field without active options fails
// with ErrLastActiveOption unless p allows it.
func optionRemovalWarnings(before, after FormField, dropped []string, p Policy) ([]Warning, error) {
	var warnings []Warning
	for _, v := range dropped {
		warnings = append(warnings, optionDeprecatedWarning(before, v))
	}
	if before.Persisted && !after.Deprecated && len(after.activeOptions()) == 0 && len(before.activeOptions()) > 0 {
		if !p.AllowEmptyOptionSet {
			return nil, fmt.Errorf("%w: field %s", ErrLastActiveOption, before.ID)
		}
		warnings = append(warnings, noActiveOptionsWarning(after))
	}
	return warnings, nil
}

func (f FormField) clone() FormField {
	out := f
	if f.Options != nil {
		out.Options = make([]FieldOption, len(f.Options))
		copy(out.Options, f.Options)
	}
	if f.Validation != nil {
		out.Validation = make([]ValidationRule, len(f.Validation))
		copy(out.Validation, f.Validation)
	}
	return out
}

func (f FormField) activeOptions() []FieldOption {
	var out []FieldOption
	for _, o := range f.Options {
		if !o.Deprecated {
			out = append(out, o)
		}
	}
	return out
}

// ActiveOptions returns the options offered to respondents.
func (f FormField) ActiveOptions() []FieldOption {
	return f.activeOptions()
}

// Option looks up an option by value, deprecated ones included.
func (f FormField) Option(value string) (FieldOption, bool) {
	for _, o := range f.Options {
		if o.Value == value {
			return o, true
		}
	}
	return FieldOption{}, false
}

func (f FormField) hasOption(value string) bool {
	_, ok := f.Option(value)
	return ok
}

// Rule returns the validation rule of the given kind, if any.
func (f FormField) Rule(kind RuleKind) (ValidationRule, bool) {
	for _, r := range f.Validation {
		if r.Kind == kind {
			return r, true
		}
	}
	return ValidationRule{}, false
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
