package events

import (
	"time"

	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/google/uuid"
)

const (
	EventTypeSubmissionCreated    = "submission.created"
	EventTypeAccountCreated       = "account.created"
	EventTypeAccountUpdated       = "account.updated"
	EventTypeAccountStatusChanged = "account.status_changed"
	EventTypeAccountDeleted       = "account.deleted"
	EventTypePasswordReset        = "account.password_reset"
	EventTypeLoginFailed          = "auth.login_failed"
	EventTypeLogsExported         = "activity.logs_exported"
)

func newBase(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

type SubmissionCreatedEvent struct {
	BaseEvent
	Actor        identity.Actor `json:"actor"`
	SubmissionID int64          `json:"submission_id"`
	District     string         `json:"district"`
	Division     string         `json:"division"`
	SubDivision  string         `json:"sub_division"`
}

func NewSubmissionCreatedEvent(actor identity.Actor, submissionID int64, district, division, subDivision string) *SubmissionCreatedEvent {
	return &SubmissionCreatedEvent{
		BaseEvent: newBase(EventTypeSubmissionCreated, map[string]interface{}{
			"submission_id": submissionID,
			"district":      district,
			"division":      division,
		}),
		Actor:        actor,
		SubmissionID: submissionID,
		District:     district,
		Division:     division,
		SubDivision:  subDivision,
	}
}

// AccountEvent carries the subject account of every account lifecycle event.
type AccountEvent struct {
	BaseEvent
	Actor     identity.Actor `json:"actor"`
	AccountID int64          `json:"account_id"`
	Username  string         `json:"username"`
	Role      identity.Role  `json:"role"`
	District  string         `json:"district,omitempty"`
	Division  string         `json:"division,omitempty"`
	Active    bool           `json:"active"`
	Changes   []string       `json:"changes,omitempty"`
}

func newAccountEvent(eventType string, actor identity.Actor, subject identity.Actor, active bool, changes []string) *AccountEvent {
	return &AccountEvent{
		BaseEvent: newBase(eventType, map[string]interface{}{
			"account_id": subject.ID,
			"username":   subject.Username,
			"role":       string(subject.Role),
			"active":     active,
		}),
		Actor:     actor,
		AccountID: subject.ID,
		Username:  subject.Username,
		Role:      subject.Role,
		District:  subject.District,
		Division:  subject.Division,
		Active:    active,
		Changes:   changes,
	}
}

func NewAccountCreatedEvent(actor, subject identity.Actor) *AccountEvent {
	return newAccountEvent(EventTypeAccountCreated, actor, subject, true, nil)
}

func NewAccountUpdatedEvent(actor, subject identity.Actor, active bool, changes []string) *AccountEvent {
	return newAccountEvent(EventTypeAccountUpdated, actor, subject, active, changes)
}

func NewAccountStatusChangedEvent(actor, subject identity.Actor, active bool) *AccountEvent {
	return newAccountEvent(EventTypeAccountStatusChanged, actor, subject, active, nil)
}

func NewAccountDeletedEvent(actor, subject identity.Actor) *AccountEvent {
	return newAccountEvent(EventTypeAccountDeleted, actor, subject, false, nil)
}

func NewPasswordResetEvent(actor, subject identity.Actor, active bool) *AccountEvent {
	return newAccountEvent(EventTypePasswordReset, actor, subject, active, nil)
}

type LoginFailedEvent struct {
	BaseEvent
	Username      string `json:"username"`
	SourceAddress string `json:"source_address"`
	Reason        string `json:"reason"`
}

func NewLoginFailedEvent(username, sourceAddress, reason string) *LoginFailedEvent {
	return &LoginFailedEvent{
		BaseEvent: newBase(EventTypeLoginFailed, map[string]interface{}{
			"username":       username,
			"source_address": sourceAddress,
			"reason":         reason,
		}),
		Username:      username,
		SourceAddress: sourceAddress,
		Reason:        reason,
	}
}

type LogsExportedEvent struct {
	BaseEvent
	Actor       identity.Actor `json:"actor"`
	RecordCount int            `json:"record_count"`
}

func NewLogsExportedEvent(actor identity.Actor, recordCount int) *LogsExportedEvent {
	return &LogsExportedEvent{
		BaseEvent: newBase(EventTypeLogsExported, map[string]interface{}{
			"record_count": recordCount,
		}),
		Actor:       actor,
		RecordCount: recordCount,
	}
}
