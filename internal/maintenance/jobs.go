// Package maintenance holds the time-triggered jobs: retention reminder and
// purge, submission rollups, inactivity and milestone checks. Jobs are
// independent, read "now" from an injected clock and never retry.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/survey-management/internal/activity"
	"github.com/frahmantamala/survey-management/internal/core/action"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/notification"
	"github.com/frahmantamala/survey-management/internal/submission"
)

const (
	JobReminder      = "cleanup-reminder"
	JobPurge         = "log-purge"
	JobDailySummary  = "daily-summary"
	JobWeeklySummary = "weekly-summary"
	JobInactivity    = "inactivity-check"
	JobMilestone     = "milestone-check"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Retention interface {
	CountPending(ctx context.Context) (int64, error)
	Purge(ctx context.Context, actor *identity.Actor) (*activity.PurgeResult, error)
}

type Notifier interface {
	Notify(ctx context.Context, target notification.Target, ev notification.Event) int
}

type SubmissionCounter interface {
	CountByDistrict(ctx context.Context, from, to time.Time) ([]submission.DistrictCount, error)
	CumulativeByDistrict(ctx context.Context) ([]submission.DistrictCount, error)
}

type InactiveFinder interface {
	InactiveDivisionUsers(ctx context.Context, since time.Time) ([]identity.Actor, error)
}

// ReminderJob warns super admins ahead of the month-end purge.
type ReminderJob struct {
	Retention Retention
	Notifier  Notifier
	Clock     clock.Clock
	Logger    *slog.Logger
}

func (j *ReminderJob) Name() string { return JobReminder }

func (j *ReminderJob) Run(ctx context.Context) error {
	pending, err := j.Retention.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("count pending: %w", err)
	}
	if pending == 0 {
		j.Logger.Info("no activity logs pending deletion")
		return nil
	}

	deletion := clock.EndOfMonth(j.Clock.Now())
	sent := j.Notifier.Notify(ctx, notification.SuperAdmins(), notification.Event{
		Kind:     action.LogCleanupReminder,
		Details:  notification.CleanupReminderDetails{PendingCount: pending, DeletionDate: deletion},
		Priority: notification.PriorityMedium,
		Category: notification.CategorySystem,
	})
	j.Logger.Info("cleanup reminder sent", "pending", pending, "deletion_date", deletion.Format(time.DateOnly), "recipients", sent)
	return nil
}

// PurgeJob fires daily and acts only on the last day of the month unless Force is set.
type PurgeJob struct {
	Retention Retention
	Clock     clock.Clock
	Logger    *slog.Logger
	Force     bool
}

func (j *PurgeJob) Name() string { return JobPurge }

func (j *PurgeJob) Run(ctx context.Context) error {
	now := j.Clock.Now()
	if !j.Force && !clock.IsLastDayOfMonth(now) {
		j.Logger.Debug("not the last day of the month, skipping purge", "date", now.Format(time.DateOnly))
		return nil
	}

	result, err := j.Retention.Purge(ctx, nil)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	j.Logger.Info("activity logs purged", "deleted", result.Deleted, "cutoff", result.Cutoff.Format(time.DateOnly))
	return nil
}

// SummaryJob sends each district's admins the number of submissions filed in
// the trailing Window. Districts without submissions get nothing.
type SummaryJob struct {
	Kind     action.Kind
	Window   time.Duration
	Counter  SubmissionCounter
	Notifier Notifier
	Clock    clock.Clock
	Logger   *slog.Logger
}

func NewDailySummaryJob(counter SubmissionCounter, notifier Notifier, clk clock.Clock, logger *slog.Logger) *SummaryJob {
	return &SummaryJob{Kind: action.DailySummary, Window: 24 * time.Hour, Counter: counter, Notifier: notifier, Clock: clk, Logger: logger}
}

func NewWeeklySummaryJob(counter SubmissionCounter, notifier Notifier, clk clock.Clock, logger *slog.Logger) *SummaryJob {
	return &SummaryJob{Kind: action.WeeklySummary, Window: 7 * 24 * time.Hour, Counter: counter, Notifier: notifier, Clock: clk, Logger: logger}
}

func (j *SummaryJob) Name() string {
	if j.Kind == action.WeeklySummary {
		return JobWeeklySummary
	}
	return JobDailySummary
}

func (j *SummaryJob) period() string {
	if j.Kind == action.WeeklySummary {
		return "weekly"
	}
	return "daily"
}

func (j *SummaryJob) Run(ctx context.Context) error {
	to := j.Clock.Now()
	from := to.Add(-j.Window)

	counts, err := j.Counter.CountByDistrict(ctx, from, to)
	if err != nil {
		return fmt.Errorf("count submissions: %w", err)
	}

	for _, c := range counts {
		if c.District == "" || c.Count == 0 {
			continue
		}
		j.Notifier.Notify(ctx, notification.DistrictAdmins(c.District), notification.Event{
			Kind: j.Kind,
			Details: notification.SummaryDetails{
				Period:          j.period(),
				District:        c.District,
				SubmissionCount: c.Count,
				From:            from,
				To:              to,
			},
			Priority: notification.PriorityLow,
			Category: notification.CategorySummary,
		})
	}
	j.Logger.Info("submission summaries sent", "period", j.period(), "districts", len(counts))
	return nil
}

// InactivityJob flags active division users with no submission in the last Days days.
type InactivityJob struct {
	Finder   InactiveFinder
	Notifier Notifier
	Clock    clock.Clock
	Logger   *slog.Logger
	Days     int
}

func (j *InactivityJob) Name() string { return JobInactivity }

func (j *InactivityJob) Run(ctx context.Context) error {
	days := j.Days
	if days <= 0 {
		days = 30
	}
	since := j.Clock.Now().AddDate(0, 0, -days)

	users, err := j.Finder.InactiveDivisionUsers(ctx, since)
	if err != nil {
		return fmt.Errorf("find inactive users: %w", err)
	}

	for _, u := range users {
		id := u.ID
		j.Notifier.Notify(ctx, notification.SuperAdmins(), notification.Event{
			Kind: action.InactiveUser,
			Details: notification.InactivityDetails{
				AccountID: u.ID,
				Username:  u.Username,
				District:  u.District,
				Division:  u.Division,
				Days:      days,
			},
			RelatedAccountID: &id,
			Priority:         notification.PriorityMedium,
			Category:         notification.CategorySummary,
		})
	}
	j.Logger.Info("inactivity check finished", "inactive_users", len(users), "days", days)
	return nil
}

// MilestoneJob announces districts whose cumulative submission count lies in
// [m, m+Tolerance] for a milestone m. It fires again on every run while the
// count stays in the band.
type MilestoneJob struct {
	Counter    SubmissionCounter
	Notifier   Notifier
	Logger     *slog.Logger
	Milestones []int
	Tolerance  int
}

func (j *MilestoneJob) Name() string { return JobMilestone }

// Reached returns the milestone count falls on, or 0.
func Reached(count int64, milestones []int, tolerance int) int {
	for _, m := range milestones {
		if count >= int64(m) && count <= int64(m+tolerance) {
			return m
		}
	}
	return 0
}

func (j *MilestoneJob) Run(ctx context.Context) error {
	counts, err := j.Counter.CumulativeByDistrict(ctx)
	if err != nil {
		return fmt.Errorf("count submissions: %w", err)
	}

	fired := 0
	for _, c := range counts {
		m := Reached(c.Count, j.Milestones, j.Tolerance)
		if m == 0 || c.District == "" {
			continue
		}
		j.Notifier.Notify(ctx, notification.SuperAndDistrictAdmins(c.District), notification.Event{
			Kind:     action.MilestoneReached,
			Details:  notification.MilestoneDetails{District: c.District, Milestone: m, Count: c.Count},
			Priority: notification.PriorityMedium,
			Category: notification.CategorySummary,
		})
		fired++
	}
	j.Logger.Info("milestone check finished", "districts", len(counts), "milestones_reached", fired)
	return nil
}
