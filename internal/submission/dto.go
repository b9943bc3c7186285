package submission

import (
	"fmt"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/core/common/validation"
)

const maxProposals = 50

type CreateSubmissionDTO struct {
	SubDivision    string         `json:"sub_division"`
	Classification []string       `json:"classification"`
	Payload        map[string]any `json:"payload"`
	Proposals      []Proposal     `json:"proposals"`
}

func (d CreateSubmissionDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("sub_division", d.SubDivision).Required().MaxLength(120)
	v.Field("classification", d.Classification).Required()
	v.Field("proposals", d.Proposals).Custom(func(value interface{}) *internal.AppError {
		proposals, _ := value.([]Proposal)
		if len(proposals) > maxProposals {
			return internal.NewValidationFieldError("proposals", fmt.Sprintf("at most %d proposals are allowed", maxProposals), internal.ErrCodeValidationFailed)
		}
		for i, p := range proposals {
			if p.Title == "" {
				return internal.NewValidationFieldError(fmt.Sprintf("proposals[%d].title", i), "proposal title is required", internal.ErrCodeValidationFailed)
			}
			if p.EstimatedCost < 0 {
				return internal.NewValidationFieldError(fmt.Sprintf("proposals[%d].estimated_cost", i), "estimated cost cannot be negative", internal.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return v.Validate()
}

type SubmissionEnvelope struct {
	Message    string      `json:"message"`
	Submission *Submission `json:"submission"`
}

type SubmissionsResponse struct {
	Message     string        `json:"message"`
	Submissions []*Submission `json:"submissions"`
	Total       int64         `json:"total"`
}
