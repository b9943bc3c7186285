// Package datamodel groups the gorm row types. Production schemas come from the
// goose migrations; Models feeds AutoMigrate for in-memory test databases.
package datamodel

import (
	"github.com/frahmantamala/survey-management/internal/core/datamodel/account"
	"github.com/frahmantamala/survey-management/internal/core/datamodel/activity"
	"github.com/frahmantamala/survey-management/internal/core/datamodel/notification"
	"github.com/frahmantamala/survey-management/internal/core/datamodel/submission"
)

func Models() []any {
	return []any{
		&account.Account{},
		&activity.Entry{},
		&notification.Notification{},
		&submission.Submission{},
	}
}
