package action

import "strconv"

// Kind names a consequential action. It keys audit entries, notifications and
// the notification message templates.
type Kind string

const (
	Login              Kind = "LOGIN"
	Logout             Kind = "LOGOUT"
	FailedLogin        Kind = "FAILED_LOGIN"
	CreateUser         Kind = "CREATE_USER"
	UpdateUser         Kind = "UPDATE_USER"
	DeleteUser         Kind = "DELETE_USER"
	ActivateUser       Kind = "ACTIVATE_USER"
	DeactivateUser     Kind = "DEACTIVATE_USER"
	ChangePassword     Kind = "CHANGE_PASSWORD"
	ResetPassword      Kind = "RESET_PASSWORD"
	CreateSubmission   Kind = "CREATE_SUBMISSION"
	ViewSubmissions    Kind = "VIEW_SUBMISSIONS"
	ExportLogs         Kind = "EXPORT_LOGS"
	DeleteLogs         Kind = "DELETE_LOGS"
	LogCleanup         Kind = "LOG_CLEANUP"
	LogCleanupReminder Kind = "LOG_CLEANUP_REMINDER"
	DailySummary       Kind = "DAILY_SUMMARY"
	WeeklySummary      Kind = "WEEKLY_SUMMARY"
	InactiveUser       Kind = "INACTIVE_USER"
	MilestoneReached   Kind = "MILESTONE_REACHED"
)

var all = []Kind{
	Login, Logout, FailedLogin,
	CreateUser, UpdateUser, DeleteUser, ActivateUser, DeactivateUser,
	ChangePassword, ResetPassword,
	CreateSubmission, ViewSubmissions,
	ExportLogs, DeleteLogs, LogCleanup, LogCleanupReminder,
	DailySummary, WeeklySummary, InactiveUser, MilestoneReached,
}

func All() []Kind {
	out := make([]Kind, len(all))
	copy(out, all)
	return out
}

func (k Kind) Valid() bool {
	for _, known := range all {
		if k == known {
			return true
		}
	}
	return false
}

func (k Kind) String() string { return string(k) }

const (
	TargetUser        = "user"
	TargetSubmission  = "submission"
	TargetAuth        = "auth"
	TargetActivityLog = "activity_log"
	TargetSystem      = "system"
)

// Target identifies what an action was applied to. The zero value means none.
type Target struct {
	Type string
	ID   string
}

func (t Target) IsZero() bool { return t.Type == "" && t.ID == "" }

func UserTarget(id int64) Target {
	return Target{Type: TargetUser, ID: strconv.FormatInt(id, 10)}
}

func SubmissionTarget(id int64) Target {
	return Target{Type: TargetSubmission, ID: strconv.FormatInt(id, 10)}
}

func AuthTarget(username string) Target {
	return Target{Type: TargetAuth, ID: username}
}
