package forms

import (
	"testing"

	"github.com/google/uuid"
	"github.com/owya490/sportshub-backend/pkg/db/models"
	"github.com/owya490/sportshub-backend/pkg/types"
)

func TestResponseComplete(t *testing.T) {
	t.Parallel()

	required := uuid.New()
	optional := uuid.New()
	form := &models.Form{
		ID: uuid.New(),
		Sections: types.FormSections{
			{ID: required, Type: types.FormSectionTypeText, Question: "Full name", Required: true},
			{ID: optional, Type: types.FormSectionTypeText, Question: "Dietary requirements"},
		},
	}

	t.Run("nil inputs are incomplete", func(t *testing.T) {
		t.Parallel()
		if ResponseComplete(nil, &models.FormResponse{}) {
			t.Fatal("nil form should be incomplete")
		}
		if ResponseComplete(form, nil) {
			t.Fatal("nil response should be incomplete")
		}
	})

	t.Run("missing required answer", func(t *testing.T) {
		t.Parallel()
		response := &models.FormResponse{
			Answers: types.FormAnswers{{SectionID: optional, Answer: "none"}},
		}
		if ResponseComplete(form, response) {
			t.Fatal("missing required answer should be incomplete")
		}
	})

	t.Run("empty required answer", func(t *testing.T) {
		t.Parallel()
		response := &models.FormResponse{
			Answers: types.FormAnswers{{SectionID: required, Answer: ""}},
		}
		if ResponseComplete(form, response) {
			t.Fatal("empty required answer should be incomplete")
		}
	})

	t.Run("required answered, optional skipped", func(t *testing.T) {
		t.Parallel()
		response := &models.FormResponse{
			Answers: types.FormAnswers{{SectionID: required, Answer: "Jane Doe"}},
		}
		if !ResponseComplete(form, response) {
			t.Fatal("response answering every required section should be complete")
		}
	})

	t.Run("multi select counts as answered", func(t *testing.T) {
		t.Parallel()
		multi := uuid.New()
		multiForm := &models.Form{
			Sections: types.FormSections{
				{ID: multi, Type: types.FormSectionTypeMultiSelect, Question: "Sessions", Required: true},
			},
		}
		response := &models.FormResponse{
			Answers: types.FormAnswers{{SectionID: multi, Answers: []string{"morning"}}},
		}
		if !ResponseComplete(multiForm, response) {
			t.Fatal("selections should satisfy a required multi-select")
		}
	})
}
