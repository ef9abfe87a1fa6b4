package forms

import "fmt"

// Reconcile merges a whole-template edit, as saved by the form builder in one
// request, into the stored template. It enforces the same rules as the
// individual field operations:
//
//   - a saved field keeps its type
//   - a saved field missing from the edit is deprecated, not dropped
//   - a saved option missing from the edit is deprecated, not dropped
//   - deprecation is never undone and a deprecated field keeps its stored
//     definition
//   - field ids and option values stay unique
//
// Metadata and Version come from edited; the caller uses Version for the
// compare-and-swap on save.
func Reconcile(stored, edited FormTemplate, p Policy) (FormTemplate, []Warning, error) {
	seen := make(map[string]bool, len(edited.Fields))
	for _, f := range edited.Fields {
		if f.ID == "" {
			continue
		}
		if seen[f.ID] {
			return stored, nil, fmt.Errorf("%w: %s", ErrDuplicateFieldID, f.ID)
		}
		seen[f.ID] = true
	}

	prev := make(map[string]FormField, len(stored.Fields))
	for _, f := range stored.Fields {
		prev[f.ID] = f
	}

	out := stored.clone()
	out.Name = edited.Name
	out.Description = edited.Description
	out.Category = edited.Category
	out.Version = edited.Version
	out.Fields = make([]FormField, 0, len(edited.Fields)+len(stored.Fields))

	var warnings []Warning
	for _, e := range edited.Fields {
		s, existed := prev[e.ID]
		var (
			f   FormField
			w   []Warning
			err error
		)
		if existed {
			f, w, err = reconcileField(s, e, p)
		} else {
			f, err = reconcileNewField(e)
		}
		if err != nil {
			return stored, nil, err
		}
		warnings = append(warnings, w...)
		out.Fields = append(out.Fields, f)
	}

	for _, s := range stored.Fields {
		if seen[s.ID] || !s.Persisted {
			continue
		}
		if !s.Deprecated {
			warnings = append(warnings, fieldDeprecatedWarning(s))
		}
		out.Fields = append(out.Fields, DeprecateField(s))
	}

	out.renumber()
	return out, warnings, nil
}

func reconcileField(s, e FormField, p Policy) (FormField, []Warning, error) {
	if s.Deprecated {
		return s.clone(), nil, nil
	}
	if e.Type != s.Type {
		if s.Persisted {
			return s, nil, fmt.Errorf("%w: field %s is %s", ErrFieldTypeImmutable, s.ID, s.Type)
		}
	}
	cfg, err := ConfigurationFor(e.Type)
	if err != nil {
		return s, nil, err
	}

	f := e.clone()
	f.Persisted = s.Persisted
	f.Deprecated = e.Deprecated

	var warnings []Warning
	if cfg.SupportsOptions {
		merged, dropped, err := mergeOptions(s.Options, e.Options, s.Persisted)
		if err != nil {
			return s, nil, err
		}
		f.Options = merged
		warnings, err = optionRemovalWarnings(s, f, dropped, p)
		if err != nil {
			return s, nil, err
		}
	} else {
		f.Options = nil
	}

	f, err = normalizeRules(f)
	if err != nil {
		return s, nil, err
	}
	return f, warnings, nil
}

func reconcileNewField(e FormField) (FormField, error) {
	if _, err := ConfigurationFor(e.Type); err != nil {
		return e, err
	}
	f := e.clone()
	if f.ID == "" {
		f.ID = newID()
	}
	f.Persisted = false
	if f.Options != nil {
		opts, _, err := mergeOptions(nil, f.Options, false)
		if err != nil {
			return e, err
		}
		f.Options = opts
	}
	return normalizeRules(f)
}

// normalizeRules keeps the last rule of each kind and fills default messages.
func normalizeRules(f FormField) (FormField, error) {
	rules := f.Validation
	f.Validation = nil
	for _, r := range rules {
		v := r.Value
		next, err := setRule(f, r.Kind, &v, r.Message)
		if err != nil {
			return f, err
		}
		f = next
	}
	return f, nil
}
