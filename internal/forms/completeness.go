package forms

import (
	"github.com/owya490/sportshub-backend/pkg/db/models"
	"github.com/owya490/sportshub-backend/pkg/types"
)

// ResponseComplete reports whether the response answers every required
// section of the form. Optional sections may be skipped; required sections
// need a non-empty answer (or at least one selection).
func ResponseComplete(form *models.Form, response *models.FormResponse) bool {
	if form == nil || response == nil {
		return false
	}

	answered := make(map[string]types.FormAnswer, len(response.Answers))
	for _, answer := range response.Answers {
		answered[answer.SectionID.String()] = answer
	}

	for _, section := range form.Sections {
		if !section.Required {
			continue
		}
		answer, ok := answered[section.ID.String()]
		if !ok {
			return false
		}
		if answer.Answer == "" && len(answer.Answers) == 0 {
			return false
		}
	}
	return true
}
