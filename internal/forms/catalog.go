// Package forms implements form schema authoring, validation and the
// submission review workflow for organization-defined safety forms.
//
// Every operation takes values and returns new values. Nothing here performs
// I/O; persistence, identity and delivery live in sibling packages.
package forms

import "fmt"

// FieldType is the closed set of field kinds a template may contain.
type FieldType string

const (
	FieldText         FieldType = "text"
	FieldTextarea     FieldType = "textarea"
	FieldNumber       FieldType = "number"
	FieldDate         FieldType = "date"
	FieldSelect       FieldType = "select"
	FieldMultiSelect  FieldType = "multiselect"
	FieldCheckbox     FieldType = "checkbox"
	FieldRadio        FieldType = "radio"
	FieldFile         FieldType = "file"
	FieldEmployeeList FieldType = "employeeList"
)

// FieldTypes lists every supported kind in palette order.
var FieldTypes = []FieldType{
	FieldText,
	FieldTextarea,
	FieldNumber,
	FieldDate,
	FieldSelect,
	FieldMultiSelect,
	FieldCheckbox,
	FieldRadio,
	FieldFile,
	FieldEmployeeList,
}

// FieldConfig describes what a field kind accepts.
type FieldConfig struct {
	Type                      FieldType     `json:"type"`
	DisplayName               string        `json:"display_name"`
	SupportsOptions           bool          `json:"supports_options"`
	SupportsNumericValidation bool          `json:"supports_numeric_validation"`
	DefaultOptions            []FieldOption `json:"default_options,omitempty"`
}

// ConfigurationFor returns the catalog entry for t.
func ConfigurationFor(t FieldType) (FieldConfig, error) {
	switch t {
	case FieldText:
		return FieldConfig{Type: t, DisplayName: "Text"}, nil
	case FieldTextarea:
		return FieldConfig{Type: t, DisplayName: "Text Area"}, nil
	case FieldNumber:
		return FieldConfig{Type: t, DisplayName: "Number", SupportsNumericValidation: true}, nil
	case FieldDate:
		return FieldConfig{Type: t, DisplayName: "Date"}, nil
	case FieldSelect:
		return choiceConfig(t, "Dropdown"), nil
	case FieldMultiSelect:
		return choiceConfig(t, "Multi Select"), nil
	case FieldRadio:
		return choiceConfig(t, "Radio Group"), nil
	case FieldCheckbox:
		return FieldConfig{Type: t, DisplayName: "Checkbox"}, nil
	case FieldFile:
		return FieldConfig{Type: t, DisplayName: "File Upload"}, nil
	case FieldEmployeeList:
		return FieldConfig{Type: t, DisplayName: "Employee"}, nil
	}
	return FieldConfig{}, fmt.Errorf("%w: %q", ErrUnknownFieldType, string(t))
}

func choiceConfig(t FieldType, name string) FieldConfig {
	return FieldConfig{
		Type:            t,
		DisplayName:     name,
		SupportsOptions: true,
		DefaultOptions:  []FieldOption{{Value: "option_1", Label: "Option 1"}},
	}
}

// Catalog returns the configuration of every supported field kind.
func Catalog() []FieldConfig {
	out := make([]FieldConfig, 0, len(FieldTypes))
	for _, t := range FieldTypes {
		cfg, _ := ConfigurationFor(t)
		out = append(out, cfg)
	}
	return out
}

// Valid reports whether t belongs to the catalog.
func (t FieldType) Valid() bool {
	_, err := ConfigurationFor(t)
	return err == nil
}
