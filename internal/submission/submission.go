package submission

import (
	"time"

	submissionDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/submission"
	"gorm.io/datatypes"
)

type Proposal struct {
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	EstimatedCost float64 `json:"estimated_cost,omitempty"`
	Priority      string  `json:"priority,omitempty"`
}

// Submission is one survey form filed by a division user for a GN division.
type Submission struct {
	ID             int64          `json:"id"`
	SubmittedBy    int64          `json:"submitted_by"`
	District       string         `json:"district"`
	Division       string         `json:"division"`
	SubDivision    string         `json:"sub_division,omitempty"`
	Classification []string       `json:"classification"`
	Payload        map[string]any `json:"payload,omitempty"`
	Proposals      []Proposal     `json:"proposals"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type Filters struct {
	District    string
	Division    string
	SubDivision string
	From        *time.Time
	To          *time.Time
}

type Page struct {
	Limit  int
	Offset int
}

// DistrictCount is the number of submissions filed for one district.
type DistrictCount struct {
	District string `gorm:"column:district" json:"district"`
	Count    int64  `gorm:"column:n" json:"count"`
}

func ToDataModel(s *Submission) *submissionDatamodel.Submission {
	proposals := make([]submissionDatamodel.Proposal, 0, len(s.Proposals))
	for _, p := range s.Proposals {
		proposals = append(proposals, submissionDatamodel.Proposal(p))
	}
	var payload datatypes.JSONMap
	if len(s.Payload) > 0 {
		payload = datatypes.JSONMap(s.Payload)
	}
	return &submissionDatamodel.Submission{
		ID:             s.ID,
		SubmittedBy:    s.SubmittedBy,
		District:       s.District,
		Division:       s.Division,
		SubDivision:    s.SubDivision,
		Classification: datatypes.NewJSONSlice(s.Classification),
		Payload:        payload,
		Proposals:      datatypes.NewJSONSlice(proposals),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func FromDataModel(s *submissionDatamodel.Submission) *Submission {
	proposals := make([]Proposal, 0, len(s.Proposals))
	for _, p := range s.Proposals {
		proposals = append(proposals, Proposal(p))
	}
	classification := []string(s.Classification)
	if classification == nil {
		classification = []string{}
	}
	return &Submission{
		ID:             s.ID,
		SubmittedBy:    s.SubmittedBy,
		District:       s.District,
		Division:       s.Division,
		SubDivision:    s.SubDivision,
		Classification: classification,
		Payload:        map[string]any(s.Payload),
		Proposals:      proposals,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func fromRows(rows []*submissionDatamodel.Submission) []*Submission {
	out := make([]*Submission, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out
}
