package types

import "github.com/google/uuid"

const (
	FormSectionTypeText        = "TEXT"
	FormSectionTypeDropdown    = "DROPDOWN"
	FormSectionTypeMultiSelect = "MULTI_SELECT"
)

// FormSection is one question in an organiser-built form.
type FormSection struct {
	ID       uuid.UUID `json:"id"`
	Type     string    `json:"type"`
	Question string    `json:"question"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
}

// FormSections is the jsonb column shape on forms.
type FormSections []FormSection

// FormAnswer holds a respondent's answer to one section.
type FormAnswer struct {
	SectionID uuid.UUID `json:"sectionId"`
	Answer    string    `json:"answer,omitempty"`
	Answers   []string  `json:"answers,omitempty"`
}

// FormAnswers is the jsonb column shape on form responses.
type FormAnswers []FormAnswer
