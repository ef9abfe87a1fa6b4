package forms

import (
	"errors"
	"testing"
)

func TestTemplateAddAndRemoveUnsaved(t *testing.T) {
	tpl := NewTemplate("Daily Inspection", "", "inspection")
	tpl, a, _ := tpl.AddField(FieldText)
	tpl, b, _ := tpl.AddField(FieldNumber)
	tpl, c, _ := tpl.AddField(FieldDate)

	tpl, warnings, err := tpl.RemoveField(b.ID)
	if err != nil {
		t.Fatalf("RemoveField failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %+v", warnings)
	}
	if _, ok := tpl.Field(b.ID); ok {
		t.Error("unsaved field should be deleted outright")
	}

	active := tpl.ActiveFields()
	if len(active) != 2 || active[0].ID != a.ID || active[1].ID != c.ID {
		t.Fatalf("unexpected active fields %+v", active)
	}
	assertDenseOrder(t, tpl)
}

func TestTemplateRemovePersistedDeprecates(t *testing.T) {
	tpl := NewTemplate("Toolbox Talk", "", "meeting")
	tpl, a, _ := tpl.AddField(FieldText)
	tpl, b, _ := tpl.AddField(FieldSelect)
	tpl = tpl.MarkPersisted()

	tpl, warnings, err := tpl.RemoveField(a.ID)
	if err != nil {
		t.Fatalf("RemoveField failed: %v", err)
	}
	if len(warnings) != 1 || warnings[0].Code != WarnFieldDeprecated || warnings[0].FieldID != a.ID {
		t.Fatalf("expected field_deprecated warning, got %+v", warnings)
	}

	kept, ok := tpl.Field(a.ID)
	if !ok || !kept.Deprecated {
		t.Fatalf("persisted field should remain as deprecated, got %+v", kept)
	}
	active := tpl.ActiveFields()
	if len(active) != 1 || active[0].ID != b.ID || active[0].Order != 0 {
		t.Fatalf("unexpected active fields %+v", active)
	}

	// a second removal is a no-op
	again, warnings, err := tpl.RemoveField(a.ID)
	if err != nil || len(warnings) != 0 || len(again.Fields) != len(tpl.Fields) {
		t.Errorf("second removal should be a no-op: %v %+v", err, warnings)
	}
}

func TestTemplateReorder(t *testing.T) {
	tpl := NewTemplate("JSA", "", "hazard")
	var ids []string
	for i := 0; i < 4; i++ {
		var f FormField
		tpl, f, _ = tpl.AddField(FieldText)
		ids = append(ids, f.ID)
	}
	tpl = tpl.MarkPersisted()
	tpl, _, _ = tpl.RemoveField(ids[1])

	// active is now [0, 2, 3]; move 3 to the front
	tpl, err := tpl.ReorderField(2, 0)
	if err != nil {
		t.Fatalf("ReorderField failed: %v", err)
	}
	active := tpl.ActiveFields()
	want := []string{ids[3], ids[0], ids[2]}
	for i, f := range active {
		if f.ID != want[i] {
			t.Fatalf("position %d: got %s want %s", i, f.ID, want[i])
		}
	}
	assertDenseOrder(t, tpl)

	if _, err := tpl.ReorderField(0, 3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := tpl.ReorderField(-1, 0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestTemplateOperationSequenceKeepsInvariants(t *testing.T) {
	tpl := NewTemplate("Sequence", "", "")
	steps := []func(FormTemplate) FormTemplate{
		func(t FormTemplate) FormTemplate { t, _, _ = t.AddField(FieldText); return t },
		func(t FormTemplate) FormTemplate { t, _, _ = t.AddField(FieldSelect); return t },
		func(t FormTemplate) FormTemplate { t, _, _ = t.AddField(FieldCheckbox); return t },
		func(t FormTemplate) FormTemplate { return t.MarkPersisted() },
		func(t FormTemplate) FormTemplate { t, _ = t.ReorderField(0, 2); return t },
		func(t FormTemplate) FormTemplate {
			t, _, _ = t.RemoveField(t.ActiveFields()[1].ID)
			return t
		},
		func(t FormTemplate) FormTemplate { t, _, _ = t.AddField(FieldNumber); return t },
		func(t FormTemplate) FormTemplate {
			t, _, _ = t.DuplicateField(t.ActiveFields()[0].ID)
			return t
		},
		func(t FormTemplate) FormTemplate {
			t, _, _ = t.RemoveField(t.ActiveFields()[2].ID)
			return t
		},
		func(t FormTemplate) FormTemplate { t, _ = t.ReorderField(2, 0); return t },
	}

	deprecated := map[string]bool{}
	for i, step := range steps {
		tpl = step(tpl)
		assertDenseOrder(t, tpl)
		assertUniqueIDs(t, tpl)
		for id := range deprecated {
			f, ok := tpl.Field(id)
			if !ok || !f.Deprecated {
				t.Fatalf("step %d: deprecated field %s was lost or revived", i, id)
			}
		}
		for _, f := range tpl.Fields {
			if f.Deprecated {
				deprecated[f.ID] = true
			}
		}
	}
}

func TestTemplateValueSemantics(t *testing.T) {
	tpl := NewTemplate("Original", "", "")
	tpl, f, _ := tpl.AddField(FieldSelect)

	label := "Changed"
	next, _, err := tpl.UpdateField(f.ID, FieldPatch{Label: &label}, Policy{})
	if err != nil {
		t.Fatalf("UpdateField failed: %v", err)
	}
	next, _ = next.AddOption(f.ID)

	orig, _ := tpl.Field(f.ID)
	if orig.Label == "Changed" || len(orig.Options) != 1 {
		t.Error("operation mutated the input template")
	}

	name := "Renamed"
	renamed := tpl.UpdateMetadata(MetadataPatch{Name: &name})
	if renamed.Name != "Renamed" || tpl.Name != "Original" {
		t.Error("UpdateMetadata should return a new value")
	}
}

func TestTemplateFieldNotFound(t *testing.T) {
	tpl := NewTemplate("Empty", "", "")
	if _, _, err := tpl.UpdateField("missing", FieldPatch{}, Policy{}); !errors.Is(err, ErrFieldNotFound) {
		t.Errorf("UpdateField: expected ErrFieldNotFound, got %v", err)
	}
	if _, _, err := tpl.RemoveField("missing"); !errors.Is(err, ErrFieldNotFound) {
		t.Errorf("RemoveField: expected ErrFieldNotFound, got %v", err)
	}
	if _, _, err := tpl.DuplicateField("missing"); !errors.Is(err, ErrFieldNotFound) {
		t.Errorf("DuplicateField: expected ErrFieldNotFound, got %v", err)
	}
	if _, err := tpl.SetValidationRule("missing", RuleMin, ptr(1)); !errors.Is(err, ErrFieldNotFound) {
		t.Errorf("SetValidationRule: expected ErrFieldNotFound, got %v", err)
	}
}

func TestTemplateTypeFrozenAfterSave(t *testing.T) {
	tpl := NewTemplate("Frozen", "", "")
	tpl, f, _ := tpl.AddField(FieldText)

	num := FieldNumber
	unsaved, _, err := tpl.UpdateField(f.ID, FieldPatch{Type: &num}, Policy{})
	if err != nil {
		t.Fatalf("unsaved type change failed: %v", err)
	}
	if got, _ := unsaved.Field(f.ID); got.Type != FieldNumber {
		t.Errorf("expected number, got %s", got.Type)
	}

	saved := tpl.MarkPersisted()
	if _, _, err := saved.UpdateField(f.ID, FieldPatch{Type: &num}, Policy{}); !errors.Is(err, ErrFieldTypeImmutable) {
		t.Fatalf("expected ErrFieldTypeImmutable, got %v", err)
	}
}

func TestTemplateDeprecatedFieldKeepsDefinition(t *testing.T) {
	tpl := NewTemplate("Weather", "", "")
	tpl, f, _ := tpl.AddField(FieldSelect)
	tpl = tpl.MarkPersisted()
	tpl, _, _ = tpl.RemoveField(f.ID)

	label := "renamed"
	if _, _, err := tpl.UpdateField(f.ID, FieldPatch{Label: &label}, Policy{}); !errors.Is(err, ErrFieldDeprecated) {
		t.Fatalf("expected ErrFieldDeprecated, got %v", err)
	}
	if _, err := tpl.AddOption(f.ID); !errors.Is(err, ErrFieldDeprecated) {
		t.Fatalf("expected ErrFieldDeprecated, got %v", err)
	}
	got, _ := tpl.Field(f.ID)
	if got.Label != f.Label || len(got.Options) != len(f.Options) {
		t.Errorf("deprecated field changed: %+v", got)
	}
}

func TestTemplateUpdateFieldWarnings(t *testing.T) {
	tpl := NewTemplate("Weather", "", "")
	tpl, f, _ := tpl.AddField(FieldRadio)
	tpl, _ = tpl.AddOption(f.ID)
	tpl = tpl.MarkPersisted()

	out, warnings, err := tpl.UpdateField(f.ID, FieldPatch{Options: []FieldOption{{Value: "option_2", Label: "Two"}}}, Policy{})
	if err != nil {
		t.Fatalf("UpdateField failed: %v", err)
	}
	if len(warnings) != 1 || warnings[0].OptionValue != "option_1" {
		t.Errorf("expected warning for option_1, got %+v", warnings)
	}

	if _, _, err := out.UpdateField(f.ID, FieldPatch{Options: []FieldOption{}}, Policy{}); !errors.Is(err, ErrLastActiveOption) {
		t.Errorf("expected ErrLastActiveOption, got %v", err)
	}
}

func assertDenseOrder(t *testing.T, tpl FormTemplate) {
	t.Helper()
	for i, f := range tpl.ActiveFields() {
		if f.Order != i {
			t.Fatalf("active field %s has order %d, want %d", f.ID, f.Order, i)
		}
	}
}

func assertUniqueIDs(t *testing.T, tpl FormTemplate) {
	t.Helper()
	seen := map[string]bool{}
	for _, f := range tpl.Fields {
		if seen[f.ID] {
			t.Fatalf("duplicate field id %s", f.ID)
		}
		seen[f.ID] = true
	}
}
