package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/survey-management/internal/core/action"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	notificationDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/notification"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/pkg/metrics"
)

const (
	coalesceWindow   = time.Hour
	coalescePrefix   = "failed_login:"
	highAttempts     = 3
	criticalAttempts = 5
)

type RepositoryAPI interface {
	CreateBatch(ctx context.Context, rows []*notificationDatamodel.Notification) error
	Update(ctx context.Context, row *notificationDatamodel.Notification) error
	LatestUnreadByKey(ctx context.Context, recipientID int64, key string, since time.Time) (*notificationDatamodel.Notification, error)
	List(ctx context.Context, recipientID int64, filters ListFilters, page Page) ([]*notificationDatamodel.Notification, int64, error)
	CountUnread(ctx context.Context, recipientID int64) (int64, error)
	GetForRecipient(ctx context.Context, id, recipientID int64) (*notificationDatamodel.Notification, error)
	MarkRead(ctx context.Context, id, recipientID int64, at time.Time) error
	MarkAllRead(ctx context.Context, recipientID int64, at time.Time) (int64, error)
	Delete(ctx context.Context, id, recipientID int64) (int64, error)
	DeleteRead(ctx context.Context, recipientID int64) (int64, error)
}

// RecipientResolver returns the active accounts a target selects.
type RecipientResolver interface {
	ActiveRecipients(ctx context.Context, roles, districtRoles []identity.Role, district string) ([]identity.Actor, error)
}

// Fanout materializes one notification per recipient. It never returns an
// error: failures are logged and counted so the triggering operation succeeds.
type Fanout struct {
	repo     RepositoryAPI
	resolver RecipientResolver
	clock    clock.Clock
	logger   *slog.Logger

	// serializes failed-login coalescing within this process
	coalesceMu sync.Mutex
}

func NewFanout(repo RepositoryAPI, resolver RecipientResolver, clk clock.Clock, logger *slog.Logger) *Fanout {
	return &Fanout{repo: repo, resolver: resolver, clock: clk, logger: logger}
}

// Notify delivers ev to every active recipient selected by target and returns
// how many notifications were written.
func (f *Fanout) Notify(ctx context.Context, target Target, ev Event) int {
	log := f.logger

	recipients, err := f.resolver.ActiveRecipients(ctx, target.Roles, target.DistrictRoles, target.District)
	if err != nil {
		metrics.NotificationFailures.Inc()
		log.Error("failed to resolve notification recipients", "action", ev.Kind, "error", err)
		return 0
	}
	if len(recipients) == 0 {
		log.Info("no recipients for notification", "action", ev.Kind, "district", target.District)
		return 0
	}

	details, err := encodeDetails(ev.Details)
	if err != nil {
		metrics.NotificationFailures.Inc()
		log.Error("failed to encode notification details", "action", ev.Kind, "error", err)
		return 0
	}

	actorName := ""
	var triggeredBy *int64
	if ev.TriggeredBy != nil {
		actorName = ev.TriggeredBy.Username
		id := ev.TriggeredBy.ID
		triggeredBy = &id
	}
	message := Render(ev.Kind, ev.Details, actorName)
	priority := ev.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	category := ev.Category
	if category == "" {
		category = CategorySystem
	}

	now := f.clock.Now().UTC()
	rows := make([]*notificationDatamodel.Notification, 0, len(recipients))
	for _, r := range recipients {
		rows = append(rows, &notificationDatamodel.Notification{
			RecipientID:         r.ID,
			TriggeredByID:       triggeredBy,
			ActionKind:          string(ev.Kind),
			RelatedSubmissionID: ev.RelatedSubmissionID,
			RelatedAccountID:    ev.RelatedAccountID,
			Message:             message,
			Details:             details,
			Priority:            string(priority),
			Category:            string(category),
			CreatedAt:           now,
			UpdatedAt:           now,
		})
	}

	if err := f.repo.CreateBatch(context.WithoutCancel(ctx), rows); err != nil {
		metrics.NotificationFailures.Inc()
		log.Error("failed to create notifications", "action", ev.Kind, "recipients", len(rows), "error", err)
		return 0
	}

	metrics.NotificationsCreated.WithLabelValues(string(category)).Add(float64(len(rows)))
	log.Debug("notifications created", "action", ev.Kind, "recipients", len(rows))
	return len(rows)
}

// CoalesceKey groups failed login notifications for one username.
func CoalesceKey(username string) string {
	return coalescePrefix + username
}

func failedLoginPriority(count int) Priority {
	switch {
	case count >= criticalAttempts:
		return PriorityCritical
	case count >= highAttempts:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// FailedLogin notifies every active super admin about a failed login. Repeated
// failures for the same username within an hour of the first unread one are
// folded into that notification instead of creating new ones.
func (f *Fanout) FailedLogin(ctx context.Context, username, address string) {
	log := f.logger

	admins, err := f.resolver.ActiveRecipients(ctx, []identity.Role{identity.RoleSuperAdmin}, nil, "")
	if err != nil {
		metrics.NotificationFailures.Inc()
		log.Error("failed to resolve failed login recipients", "username", username, "error", err)
		return
	}

	f.coalesceMu.Lock()
	defer f.coalesceMu.Unlock()

	wctx := context.WithoutCancel(ctx)
	for _, admin := range admins {
		if err := f.coalesceFailedLogin(wctx, admin.ID, username, address); err != nil {
			metrics.NotificationFailures.Inc()
			log.Error("failed to record failed login notification",
				"recipient_id", admin.ID,
				"username", username,
				"error", err)
		}
	}
}

func (f *Fanout) coalesceFailedLogin(ctx context.Context, recipientID int64, username, address string) error {
	now := f.clock.Now().UTC()
	key := CoalesceKey(username)

	existing, err := f.repo.LatestUnreadByKey(ctx, recipientID, key, now.Add(-coalesceWindow))
	if err != nil {
		return fmt.Errorf("lookup coalesced notification: %w", err)
	}

	if existing != nil {
		details := FailedLoginDetails{Username: username, FirstAttemptAt: existing.CreatedAt}
		if decoded, derr := DecodeDetails(action.FailedLogin, existing.Details); derr == nil {
			if d, ok := decoded.(FailedLoginDetails); ok {
				details = d
			}
		}
		if details.Count < 1 {
			details.Count = 1
		}
		details.Count++
		details.LastAttemptAddress = address
		details.LastAttemptAt = now

		raw, err := encodeDetails(details)
		if err != nil {
			return err
		}
		existing.Details = raw
		existing.Message = Render(action.FailedLogin, details, "")
		existing.Priority = string(failedLoginPriority(details.Count))
		existing.UpdatedAt = now
		if err := f.repo.Update(ctx, existing); err != nil {
			return fmt.Errorf("update coalesced notification: %w", err)
		}
		return nil
	}

	details := FailedLoginDetails{
		Username:           username,
		Count:              1,
		LastAttemptAddress: address,
		LastAttemptAt:      now,
		FirstAttemptAt:     now,
	}
	raw, err := encodeDetails(details)
	if err != nil {
		return err
	}
	row := &notificationDatamodel.Notification{
		RecipientID: recipientID,
		ActionKind:  string(action.FailedLogin),
		Message:     Render(action.FailedLogin, details, ""),
		Details:     raw,
		Priority:    string(failedLoginPriority(1)),
		Category:    string(CategorySecurity),
		CoalesceKey: &key,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.repo.CreateBatch(ctx, []*notificationDatamodel.Notification{row}); err != nil {
		return fmt.Errorf("create failed login notification: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(CategorySecurity)).Inc()
	return nil
}
