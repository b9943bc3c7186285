package activity

import (
	"time"

	"github.com/frahmantamala/survey-management/internal/core/action"
	activityDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/activity"
	"gorm.io/datatypes"
)

type Entry struct {
	ID            int64          `json:"id"`
	ActorID       *int64         `json:"actor_id,omitempty"`
	ActorUsername string         `json:"actor_username,omitempty"`
	ActorRole     string         `json:"actor_role,omitempty"`
	ActionKind    action.Kind    `json:"action"`
	TargetType    string         `json:"target_type,omitempty"`
	TargetID      string         `json:"target_id,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	SourceAddress string         `json:"source_address,omitempty"`
	UserAgent     string         `json:"user_agent,omitempty"`
	District      string         `json:"district,omitempty"`
	Division      string         `json:"division,omitempty"`
	CreatedAt     time.Time      `json:"timestamp"`
}

type Filters struct {
	ActionKind string     `json:"action,omitempty"`
	District   string     `json:"district,omitempty"`
	Division   string     `json:"division,omitempty"`
	ActorID    int64      `json:"actor_id,omitempty"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
}

type Page struct {
	Limit  int
	Offset int
}

type ListResult struct {
	Entries []*Entry `json:"logs"`
	Total   int64    `json:"total"`
}

type Stats struct {
	Total    int64            `json:"total"`
	Last24h  int64            `json:"last_24h"`
	ByAction map[string]int64 `json:"by_action"`
}

// ExportDocument is the attachment body of GET /activity-logs/export.
type ExportDocument struct {
	ExportDate   time.Time `json:"exportDate"`
	ExportedBy   string    `json:"exportedBy"`
	TotalRecords int       `json:"totalRecords"`
	Filters      Filters   `json:"filters"`
	Logs         []*Entry  `json:"logs"`
}

type PurgeResult struct {
	Deleted int64     `json:"deleted_count"`
	Cutoff  time.Time `json:"cutoff_date"`
}

// BulkDeleteFilters selects entries for an explicit super-admin deletion. Before is mandatory.
type BulkDeleteFilters struct {
	Before     time.Time
	ActionKind string
	District   string
}

func ToDataModel(e *Entry) *activityDatamodel.Entry {
	var details datatypes.JSONMap
	if len(e.Details) > 0 {
		details = datatypes.JSONMap(e.Details)
	}
	return &activityDatamodel.Entry{
		ID:            e.ID,
		ActorID:       e.ActorID,
		ActorUsername: e.ActorUsername,
		ActorRole:     e.ActorRole,
		ActionKind:    string(e.ActionKind),
		TargetType:    e.TargetType,
		TargetID:      e.TargetID,
		Details:       details,
		SourceAddress: e.SourceAddress,
		UserAgent:     e.UserAgent,
		District:      optional(e.District),
		Division:      optional(e.Division),
		CreatedAt:     e.CreatedAt,
	}
}

func FromDataModel(e *activityDatamodel.Entry) *Entry {
	return &Entry{
		ID:            e.ID,
		ActorID:       e.ActorID,
		ActorUsername: e.ActorUsername,
		ActorRole:     e.ActorRole,
		ActionKind:    action.Kind(e.ActionKind),
		TargetType:    e.TargetType,
		TargetID:      e.TargetID,
		Details:       map[string]any(e.Details),
		SourceAddress: e.SourceAddress,
		UserAgent:     e.UserAgent,
		District:      deref(e.District),
		Division:      deref(e.Division),
		CreatedAt:     e.CreatedAt,
	}
}

func fromRows(rows []*activityDatamodel.Entry) []*Entry {
	out := make([]*Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
