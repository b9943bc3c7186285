package notification

import (
	"encoding/json"
	"time"

	"github.com/frahmantamala/survey-management/internal/core/action"
	notificationDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/notification"
	"github.com/frahmantamala/survey-management/internal/core/identity"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

type Category string

const (
	CategorySubmission Category = "submission"
	CategoryUser       Category = "user"
	CategorySecurity   Category = "security"
	CategorySystem     Category = "system"
	CategoryExport     Category = "export"
	CategorySummary    Category = "summary"
)

func (c Category) Valid() bool {
	switch c {
	case CategorySubmission, CategoryUser, CategorySecurity, CategorySystem, CategoryExport, CategorySummary:
		return true
	}
	return false
}

// Target selects recipients: active accounts whose role is in Roles, plus active
// accounts whose role is in DistrictRoles and whose district is District.
type Target struct {
	Roles         []identity.Role
	DistrictRoles []identity.Role
	District      string
}

func SuperAdmins() Target {
	return Target{Roles: []identity.Role{identity.RoleSuperAdmin}}
}

func DistrictAdmins(district string) Target {
	return Target{DistrictRoles: []identity.Role{identity.RoleDistrictAdmin}, District: district}
}

// SuperAndDistrictAdmins reaches every super admin and the admins of one district.
func SuperAndDistrictAdmins(district string) Target {
	return Target{
		Roles:         []identity.Role{identity.RoleSuperAdmin},
		DistrictRoles: []identity.Role{identity.RoleDistrictAdmin},
		District:      district,
	}
}

// Event is one fanout request. TriggeredBy is nil for system-originated events.
type Event struct {
	Kind                action.Kind
	Details             Details
	TriggeredBy         *identity.Actor
	RelatedSubmissionID *int64
	RelatedAccountID    *int64
	Priority            Priority
	Category            Category
}

type Notification struct {
	ID                  int64           `json:"id"`
	RecipientID         int64           `json:"recipient_id"`
	TriggeredByID       *int64          `json:"triggered_by_id,omitempty"`
	ActionKind          action.Kind     `json:"action"`
	RelatedSubmissionID *int64          `json:"related_submission_id,omitempty"`
	RelatedAccountID    *int64          `json:"related_account_id,omitempty"`
	Message             string          `json:"message"`
	Details             json.RawMessage `json:"details,omitempty"`
	Priority            Priority        `json:"priority"`
	Category            Category        `json:"category"`
	CoalesceKey         *string         `json:"-"`
	IsRead              bool            `json:"is_read"`
	ReadAt              *time.Time      `json:"read_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type ListFilters struct {
	UnreadOnly bool
	Category   Category
}

type Page struct {
	Limit  int
	Offset int
}

type ListResult struct {
	Notifications []*Notification `json:"notifications"`
	Total         int64           `json:"total"`
	UnreadCount   int64           `json:"unread_count"`
}

func FromDataModel(n *notificationDatamodel.Notification) *Notification {
	return &Notification{
		ID:                  n.ID,
		RecipientID:         n.RecipientID,
		TriggeredByID:       n.TriggeredByID,
		ActionKind:          action.Kind(n.ActionKind),
		RelatedSubmissionID: n.RelatedSubmissionID,
		RelatedAccountID:    n.RelatedAccountID,
		Message:             n.Message,
		Details:             json.RawMessage(n.Details),
		Priority:            Priority(n.Priority),
		Category:            Category(n.Category),
		CoalesceKey:         n.CoalesceKey,
		IsRead:              n.IsRead,
		ReadAt:              n.ReadAt,
		CreatedAt:           n.CreatedAt,
		UpdatedAt:           n.UpdatedAt,
	}
}

func fromRows(rows []*notificationDatamodel.Notification) []*Notification {
	out := make([]*Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out
}
