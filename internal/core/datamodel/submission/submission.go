package submission

import (
	"time"

	"gorm.io/datatypes"
)

type Proposal struct {
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	EstimatedCost float64 `json:"estimated_cost,omitempty"`
	Priority      string  `json:"priority,omitempty"`
}

type Submission struct {
	ID             int64                         `gorm:"primaryKey"`
	SubmittedBy    int64                         `gorm:"column:submitted_by;not null;index"`
	District       string                        `gorm:"column:district;not null;index"`
	Division       string                        `gorm:"column:division;not null"`
	SubDivision    string                        `gorm:"column:sub_division"`
	Classification datatypes.JSONSlice[string]   `gorm:"column:classification"`
	Payload        datatypes.JSONMap             `gorm:"column:payload"`
	Proposals      datatypes.JSONSlice[Proposal] `gorm:"column:proposals"`
	CreatedAt      time.Time                     `gorm:"column:created_at;not null;index"`
	UpdatedAt      time.Time                     `gorm:"column:updated_at"`
}

func (Submission) TableName() string {
	return "submissions"
}
