package forms

// Policy holds the behaviors the form engine leaves to configuration.
// The zero value is the default.
type Policy struct {
	// AllowEmptyOptionSet lets the last active option of a saved choice
	// field be removed. The field then cannot be answered, which is
	// surfaced as a WarnNoActiveOptions warning. When false the removal
	// fails with ErrLastActiveOption.
	AllowEmptyOptionSet bool `json:"allow_empty_option_set"`

	// EnforceFileRequired makes required file fields mandatory in the
	// validation contract. When false, file presence is left to the client.
	EnforceFileRequired bool `json:"enforce_file_required"`
}

// WarningCode classifies a non-fatal structural change.
type WarningCode string

const (
	WarnFieldDeprecated  WarningCode = "field_deprecated"
	WarnOptionDeprecated WarningCode = "option_deprecated"
	WarnNoActiveOptions  WarningCode = "no_active_options"
)

// Warning reports an edit that was applied as a deprecation rather than a
// deletion because recorded submissions may still reference it.
type Warning struct {
	Code        WarningCode `json:"code"`
	FieldID     string      `json:"field_id"`
	OptionValue string      `json:"option_value,omitempty"`
	Message     string      `json:"message"`
}

func fieldDeprecatedWarning(f FormField) Warning {
	return Warning{
		Code:    WarnFieldDeprecated,
		FieldID: f.ID,
		Message: "\"" + f.Label + "\" has existing data and was deprecated instead of deleted",
	}
}

func optionDeprecatedWarning(f FormField, value string) Warning {
	return Warning{
		Code:        WarnOptionDeprecated,
		FieldID:     f.ID,
		OptionValue: value,
		Message:     "option " + value + " of \"" + f.Label + "\" was deprecated instead of deleted",
	}
}

func noActiveOptionsWarning(f FormField) Warning {
	return Warning{
		Code:    WarnNoActiveOptions,
		FieldID: f.ID,
		Message: "\"" + f.Label + "\" has no selectable options left and cannot be answered",
	}
}
