package notification

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/survey-management/internal/core/action"
)

// Details is the structured payload of a notification. Each variant carries
// only the fields its message template reads and renders itself, so a payload
// shape cannot exist without a template.
type Details interface {
	render(kind action.Kind, actor string) string
}

const dateLayout = "2006-01-02"

// Render produces the human readable message. It is total: nil details and
// kinds a variant does not know fall back to the generic template.
func Render(kind action.Kind, details Details, actor string) string {
	if actor == "" {
		actor = "System"
	}
	if details == nil {
		return genericMessage(kind, actor)
	}
	return details.render(kind, actor)
}

func genericMessage(kind action.Kind, actor string) string {
	return fmt.Sprintf("%s performed %s", actor, humanize(kind))
}

func humanize(kind action.Kind) string {
	if kind == "" {
		return "an action"
	}
	return strings.ToLower(strings.ReplaceAll(string(kind), "_", " "))
}

type SubmissionDetails struct {
	SubmissionID int64  `json:"submission_id"`
	District     string `json:"district"`
	Division     string `json:"division"`
	SubDivision  string `json:"sub_division,omitempty"`
}

func (d SubmissionDetails) render(kind action.Kind, actor string) string {
	if kind != action.CreateSubmission {
		return genericMessage(kind, actor)
	}
	place := d.Division + ", " + d.District
	if d.SubDivision != "" {
		place = d.SubDivision + ", " + place
	}
	return fmt.Sprintf("New submission by %s for %s", actor, place)
}

type AccountDetails struct {
	Username string   `json:"username"`
	Role     string   `json:"role,omitempty"`
	District string   `json:"district,omitempty"`
	Division string   `json:"division,omitempty"`
	Changes  []string `json:"changes,omitempty"`
}

func (d AccountDetails) render(kind action.Kind, actor string) string {
	switch kind {
	case action.CreateUser:
		msg := fmt.Sprintf("%s created %s account '%s'", actor, roleLabel(d.Role), d.Username)
		if d.District != "" {
			msg += " in " + d.District
		}
		return msg
	case action.UpdateUser:
		msg := fmt.Sprintf("%s updated account '%s'", actor, d.Username)
		if len(d.Changes) > 0 {
			msg += " (" + strings.Join(d.Changes, ", ") + ")"
		}
		return msg
	case action.ActivateUser:
		return fmt.Sprintf("%s activated account '%s'", actor, d.Username)
	case action.DeactivateUser:
		return fmt.Sprintf("%s deactivated account '%s'", actor, d.Username)
	case action.DeleteUser:
		return fmt.Sprintf("%s deleted account '%s'", actor, d.Username)
	case action.ResetPassword:
		return fmt.Sprintf("%s reset the password of '%s'", actor, d.Username)
	case action.ChangePassword:
		return fmt.Sprintf("'%s' changed their password", d.Username)
	}
	return genericMessage(kind, actor)
}

func roleLabel(role string) string {
	if role == "" {
		return "an"
	}
	return strings.ReplaceAll(role, "_", " ")
}

type FailedLoginDetails struct {
	Username           string    `json:"username"`
	Count              int       `json:"count"`
	LastAttemptAddress string    `json:"last_attempt_address,omitempty"`
	LastAttemptAt      time.Time `json:"last_attempt_at"`
	FirstAttemptAt     time.Time `json:"first_attempt_at"`
}

func (d FailedLoginDetails) render(_ action.Kind, _ string) string {
	attempts := "attempts"
	if d.Count == 1 {
		attempts = "attempt"
	}
	msg := fmt.Sprintf("%d failed login %s for '%s'", d.Count, attempts, d.Username)
	if d.LastAttemptAddress != "" {
		msg += ", last from " + d.LastAttemptAddress
	}
	return msg
}

type CleanupDetails struct {
	DeletedCount int64     `json:"deleted_count"`
	CutoffDate   time.Time `json:"cutoff_date"`
}

func (d CleanupDetails) render(_ action.Kind, _ string) string {
	return fmt.Sprintf("Activity log cleanup removed %d entries older than %s",
		d.DeletedCount, d.CutoffDate.Format(dateLayout))
}

type CleanupReminderDetails struct {
	PendingCount int64     `json:"pending_count"`
	DeletionDate time.Time `json:"deletion_date"`
}

func (d CleanupReminderDetails) render(_ action.Kind, _ string) string {
	return fmt.Sprintf("%d activity log entries older than one month will be deleted on %s. Export them before then if needed",
		d.PendingCount, d.DeletionDate.Format(dateLayout))
}

type SummaryDetails struct {
	Period          string    `json:"period"`
	District        string    `json:"district"`
	SubmissionCount int64     `json:"submission_count"`
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
}

func (d SummaryDetails) render(kind action.Kind, _ string) string {
	label := "Daily"
	if kind == action.WeeklySummary {
		label = "Weekly"
	}
	noun := "submissions"
	if d.SubmissionCount == 1 {
		noun = "submission"
	}
	return fmt.Sprintf("%s summary for %s: %d %s between %s and %s",
		label, d.District, d.SubmissionCount, noun, d.From.Format(dateLayout), d.To.Format(dateLayout))
}

type InactivityDetails struct {
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
	District  string `json:"district"`
	Division  string `json:"division"`
	Days      int    `json:"days"`
}

func (d InactivityDetails) render(_ action.Kind, _ string) string {
	return fmt.Sprintf("Division user '%s' (%s, %s) has made no submissions in the last %d days",
		d.Username, d.Division, d.District, d.Days)
}

type MilestoneDetails struct {
	District  string `json:"district"`
	Milestone int    `json:"milestone"`
	Count     int64  `json:"count"`
}

func (d MilestoneDetails) render(_ action.Kind, _ string) string {
	return fmt.Sprintf("%s reached %d submissions (currently %d)", d.District, d.Milestone, d.Count)
}

type ExportDetails struct {
	RecordCount int `json:"record_count"`
}

func (d ExportDetails) render(kind action.Kind, actor string) string {
	if kind == action.DeleteLogs {
		return fmt.Sprintf("%s deleted %d activity log entries", actor, d.RecordCount)
	}
	return fmt.Sprintf("%s exported %d activity log entries", actor, d.RecordCount)
}

// GenericDetails holds payloads of kinds without a dedicated variant.
type GenericDetails map[string]any

func (d GenericDetails) render(kind action.Kind, actor string) string {
	return genericMessage(kind, actor)
}

// DecodeDetails restores the variant stored for kind. Empty payloads decode to nil.
func DecodeDetails(kind action.Kind, raw []byte) (Details, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch kind {
	case action.CreateSubmission:
		return decode[SubmissionDetails](raw)
	case action.CreateUser, action.UpdateUser, action.DeleteUser, action.ActivateUser,
		action.DeactivateUser, action.ResetPassword, action.ChangePassword:
		return decode[AccountDetails](raw)
	case action.FailedLogin:
		return decode[FailedLoginDetails](raw)
	case action.LogCleanup:
		return decode[CleanupDetails](raw)
	case action.LogCleanupReminder:
		return decode[CleanupReminderDetails](raw)
	case action.DailySummary, action.WeeklySummary:
		return decode[SummaryDetails](raw)
	case action.InactiveUser:
		return decode[InactivityDetails](raw)
	case action.MilestoneReached:
		return decode[MilestoneDetails](raw)
	case action.ExportLogs, action.DeleteLogs:
		return decode[ExportDetails](raw)
	default:
		return decode[GenericDetails](raw)
	}
}

func decode[T Details](raw []byte) (Details, error) {
	var d T
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode %T: %w", d, err)
	}
	return d, nil
}

func encodeDetails(d Details) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}
