package forms

import (
	"fmt"
	"sort"
	"time"
)

// FormTemplate is an organization's authored schema for one kind of form.
// Fields keeps every field ever saved, deprecated ones included; Order on the
// active fields is authoritative for display.
type FormTemplate struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category"`
	Fields      []FormField `json:"fields"`
	Version     int         `json:"version"`
	CreatedBy   string      `json:"created_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// MetadataPatch updates the descriptive part of a template.
type MetadataPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// NewTemplate returns an empty, unsaved template.
func NewTemplate(name, description, category string) FormTemplate {
	return FormTemplate{
		ID:          newID(),
		Name:        name,
		Description: description,
		Category:    category,
		Fields:      []FormField{},
	}
}

// ActiveFields returns the non-deprecated fields sorted by Order. This is the
// only view shown to respondents or compiled into a validator.
func (t FormTemplate) ActiveFields() []FormField {
	active := make([]FormField, 0, len(t.Fields))
	for _, f := range t.Fields {
		if !f.Deprecated {
			active = append(active, f.clone())
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Order < active[j].Order })
	return active
}

// Field looks a field up by id, deprecated fields included.
func (t FormTemplate) Field(id string) (FormField, bool) {
	if i := t.indexOf(id); i >= 0 {
		return t.Fields[i].clone(), true
	}
	return FormField{}, false
}

// UpdateMetadata applies a name/description/category change.
func (t FormTemplate) UpdateMetadata(m MetadataPatch) FormTemplate {
	out := t.clone()
	if m.Name != nil {
		out.Name = *m.Name
	}
	if m.Description != nil {
		out.Description = *m.Description
	}
	if m.Category != nil {
		out.Category = *m.Category
	}
	return out
}

// AddField appends a new field of type ft after the last active field.
func (t FormTemplate) AddField(ft FieldType) (FormTemplate, FormField, error) {
	f, err := NewField(ft, "", t.activeCount())
	if err != nil {
		return t, FormField{}, err
	}
	out := t.clone()
	out.Fields = append(out.Fields, f)
	return out, f.clone(), nil
}

// UpdateField applies patch to the field with the given id, see UpdateField.
func (t FormTemplate) UpdateField(id string, patch FieldPatch, p Policy) (FormTemplate, []Warning, error) {
	var warnings []Warning
	out, err := t.withField(id, func(f FormField) (FormField, error) {
		next, w, err := UpdateField(f, patch, p)
		warnings = w
		return next, err
	})
	if err != nil {
		return t, nil, err
	}
	return out, warnings, nil
}

// RemoveField deletes an unsaved field outright. A saved field is deprecated
// instead and a WarnFieldDeprecated warning is returned.
func (t FormTemplate) RemoveField(id string) (FormTemplate, []Warning, error) {
	i := t.indexOf(id)
	if i < 0 {
		return t, nil, fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}

	out := t.clone()
	f := out.Fields[i]
	if !f.Persisted {
		out.Fields = append(out.Fields[:i], out.Fields[i+1:]...)
		out.renumber()
		return out, nil, nil
	}
	if f.Deprecated {
		return out, nil, nil
	}

	out.Fields[i] = DeprecateField(f)
	out.renumber()
	return out, []Warning{fieldDeprecatedWarning(f)}, nil
}

// DeprecateField hides a field from new submissions while keeping it for
// historical ones, whether or not it has been saved yet.
func (t FormTemplate) DeprecateField(id string) (FormTemplate, error) {
	out, err := t.withField(id, func(f FormField) (FormField, error) {
		return DeprecateField(f), nil
	})
	if err != nil {
		return t, err
	}
	out.renumber()
	return out, nil
}

// ReorderField moves the active field at position from to position to and
// renumbers the active fields densely. Deprecated fields are untouched.
func (t FormTemplate) ReorderField(from, to int) (FormTemplate, error) {
	active := t.ActiveFields()
	if from < 0 || from >= len(active) || to < 0 || to >= len(active) {
		return t, fmt.Errorf("%w: move %d -> %d with %d active fields", ErrIndexOutOfRange, from, to, len(active))
	}

	moved := active[from]
	active = append(active[:from], active[from+1:]...)
	active = append(active[:to], append([]FormField{moved}, active[to:]...)...)

	position := make(map[string]int, len(active))
	for i, f := range active {
		position[f.ID] = i
	}

	out := t.clone()
	for i := range out.Fields {
		if p, ok := position[out.Fields[i].ID]; ok {
			out.Fields[i].Order = p
		}
	}
	return out, nil
}

// DuplicateField copies a field and appends the copy after the last active field.
func (t FormTemplate) DuplicateField(id string) (FormTemplate, FormField, error) {
	src, ok := t.Field(id)
	if !ok {
		return t, FormField{}, fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	dup := DuplicateField(src, t.activeCount())
	out := t.clone()
	out.Fields = append(out.Fields, dup)
	return out, dup.clone(), nil
}

// AddOption appends a fresh option to a choice field.
func (t FormTemplate) AddOption(fieldID string) (FormTemplate, error) {
	return t.withField(fieldID, AddOption)
}

// RemoveOption removes or deprecates an option, see RemoveOption.
func (t FormTemplate) RemoveOption(fieldID, value string, p Policy) (FormTemplate, []Warning, error) {
	var warnings []Warning
	out, err := t.withField(fieldID, func(f FormField) (FormField, error) {
		next, w, err := RemoveOption(f, value, p)
		warnings = w
		return next, err
	})
	if err != nil {
		return t, nil, err
	}
	return out, warnings, nil
}

// SetValidationRule upserts or clears a numeric bound on a field.
func (t FormTemplate) SetValidationRule(fieldID string, kind RuleKind, value *float64) (FormTemplate, error) {
	return t.withField(fieldID, func(f FormField) (FormField, error) {
		return SetValidationRule(f, kind, value)
	})
}

// MarkPersisted freezes every field. Called after a successful save.
func (t FormTemplate) MarkPersisted() FormTemplate {
	out := t.clone()
	for i := range out.Fields {
		out.Fields[i].Persisted = true
	}
	return out
}

func (t FormTemplate) withField(id string, fn func(FormField) (FormField, error)) (FormTemplate, error) {
	i := t.indexOf(id)
	if i < 0 {
		return t, fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	next, err := fn(t.Fields[i])
	if err != nil {
		return t, err
	}
	out := t.clone()
	out.Fields[i] = next
	return out, nil
}

func (t FormTemplate) indexOf(id string) int {
	for i, f := range t.Fields {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (t FormTemplate) activeCount() int {
	n := 0
	for _, f := range t.Fields {
		if !f.Deprecated {
			n++
		}
	}
	return n
}

// renumber compacts Order over the active fields, keeping their relative order.
func (t *FormTemplate) renumber() {
	idx := make([]int, 0, len(t.Fields))
	for i, f := range t.Fields {
		if !f.Deprecated {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return t.Fields[idx[a]].Order < t.Fields[idx[b]].Order })
	for pos, i := range idx {
		t.Fields[i].Order = pos
	}
}

func (t FormTemplate) clone() FormTemplate {
	out := t
	out.Fields = make([]FormField, len(t.Fields))
	for i, f := range t.Fields {
		out.Fields[i] = f.clone()
	}
	return out
}
