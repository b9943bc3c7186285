package activity

import (
	"time"

	"gorm.io/datatypes"
)

// Entry is an immutable audit row. ActorID is nil for anonymous failed logins.
type Entry struct {
	ID            int64             `gorm:"primaryKey"`
	ActorID       *int64            `gorm:"column:actor_id;index"`
	ActorUsername string            `gorm:"column:actor_username"`
	ActorRole     string            `gorm:"column:actor_role"`
	ActionKind    string            `gorm:"column:action_kind;not null;index"`
	TargetType    string            `gorm:"column:target_type"`
	TargetID      string            `gorm:"column:target_id"`
	Details       datatypes.JSONMap `gorm:"column:details"`
	SourceAddress string            `gorm:"column:source_address"`
	UserAgent     string            `gorm:"column:user_agent"`
	District      *string           `gorm:"column:district;index"`
	Division      *string           `gorm:"column:division"`
	CreatedAt     time.Time         `gorm:"column:created_at;not null;index"`
}

func (Entry) TableName() string {
	return "activity_logs"
}
