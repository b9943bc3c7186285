package notification

import (
	"time"

	"gorm.io/datatypes"
)

type Notification struct {
	ID                  int64          `gorm:"primaryKey"`
	RecipientID         int64          `gorm:"column:recipient_id;not null;index"`
	TriggeredByID       *int64         `gorm:"column:triggered_by_id"`
	ActionKind          string         `gorm:"column:action_kind;not null"`
	RelatedSubmissionID *int64         `gorm:"column:related_submission_id"`
	RelatedAccountID    *int64         `gorm:"column:related_account_id"`
	Message             string         `gorm:"column:message;not null"`
	Details             datatypes.JSON `gorm:"column:details"`
	Priority            string         `gorm:"column:priority;not null"`
	Category            string         `gorm:"column:category;not null"`
	CoalesceKey         *string        `gorm:"column:coalesce_key;index"`
	IsRead              bool           `gorm:"column:is_read;not null"`
	ReadAt              *time.Time     `gorm:"column:read_at"`
	CreatedAt           time.Time      `gorm:"column:created_at;not null;index"`
	UpdatedAt           time.Time      `gorm:"column:updated_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
