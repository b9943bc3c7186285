package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/core/action"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	activityDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/activity"
	"github.com/frahmantamala/survey-management/internal/core/events"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/core/scope"
	"github.com/frahmantamala/survey-management/internal/notification"
)

var exportLimit int64 = 100000

type RepositoryAPI interface {
	Create(ctx context.Context, entry *activityDatamodel.Entry) error
	List(ctx context.Context, filter scope.Filter, filters Filters, page Page) ([]*activityDatamodel.Entry, int64, error)
	CountBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListBefore(ctx context.Context, cutoff time.Time) ([]*activityDatamodel.Entry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteMatching(ctx context.Context, filters BulkDeleteFilters) (int64, error)
}

// StatsRepositoryAPI aggregates entries within a scope.
type StatsRepositoryAPI interface {
	CountByAction(ctx context.Context, filter scope.Filter) (map[string]int64, error)
	CountSince(ctx context.Context, filter scope.Filter, since time.Time) (int64, error)
}

// EventPublisher delivers export announcements off the request path.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Notifier interface {
	Notify(ctx context.Context, target notification.Target, ev notification.Event) int
}

// Archiver stores entries about to be purged. It returns the object location.
type Archiver interface {
	Archive(ctx context.Context, cutoff time.Time, entries []*Entry) (string, error)
}

type Service struct {
	repo      RepositoryAPI
	stats     StatsRepositoryAPI
	recorder  *Recorder
	publisher EventPublisher
	notifier  Notifier
	archiver  Archiver
	clock     clock.Clock
	logger    *slog.Logger
}

// NewService wires the query and retention side. archiver may be nil.
func NewService(repo RepositoryAPI, stats StatsRepositoryAPI, recorder *Recorder, publisher EventPublisher, notifier Notifier, archiver Archiver, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		stats:     stats,
		recorder:  recorder,
		publisher: publisher,
		notifier:  notifier,
		archiver:  archiver,
		clock:     clk,
		logger:    logger,
	}
}

// List returns entries visible to the requester. The requester's scope always
// wins over explicit district and actor filters.
func (s *Service) List(ctx context.Context, requester identity.Actor, filters Filters, page Page) (*ListResult, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	if page.Limit <= 0 || page.Limit > 500 {
		page.Limit = 50
	}
	if page.Offset < 0 {
		page.Offset = 0
	}

	filter := scope.FilterFor(requester)
	rows, total, err := s.repo.List(ctx, filter, narrow(filter, filters), page)
	if err != nil {
		return nil, fmt.Errorf("activity.List: %w", err)
	}
	return &ListResult{Entries: fromRows(rows), Total: total}, nil
}

func (s *Service) Stats(ctx context.Context, requester identity.Actor) (*Stats, error) {
	filter := scope.FilterFor(requester)

	byAction, err := s.stats.CountByAction(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("activity.Stats: by action: %w", err)
	}
	recent, err := s.stats.CountSince(ctx, filter, s.clock.Now().Add(-24*time.Hour).UTC())
	if err != nil {
		return nil, fmt.Errorf("activity.Stats: last 24h: %w", err)
	}

	var total int64
	for _, n := range byAction {
		total += n
	}
	return &Stats{Total: total, Last24h: recent, ByAction: byAction}, nil
}

// Export returns every entry matching filters within the requester's scope,
// ready to be served as an attachment.
func (s *Service) Export(ctx context.Context, requester identity.Actor, filters Filters) (*ExportDocument, error) {
	if requester.IsDivisionUser() {
		return nil, internal.NewForbiddenError("Only administrators can export activity logs", internal.ErrCodeInsufficientRole)
	}
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	filter := scope.FilterFor(requester)
	filters = narrow(filter, filters)
	rows, total, err := s.repo.List(ctx, filter, filters, Page{Limit: int(exportLimit)})
	if err != nil {
		return nil, fmt.Errorf("activity.Export: %w", err)
	}
	if total > exportLimit {
		return nil, internal.NewValidationError(
			fmt.Sprintf("Export matches %d entries, more than the %d allowed; narrow the filters", total, exportLimit),
			internal.ErrCodeExportTooLarge)
	}

	doc := &ExportDocument{
		ExportDate:   s.clock.Now(),
		ExportedBy:   requester.Username,
		TotalRecords: len(rows),
		Filters:      filters,
		Logs:         fromRows(rows),
	}

	s.recorder.Record(ctx, &requester, action.ExportLogs, action.Target{Type: action.TargetActivityLog}, map[string]any{
		"record_count": doc.TotalRecords,
		"filters":      filters,
	})
	if err := s.publisher.Publish(ctx, events.NewLogsExportedEvent(requester, doc.TotalRecords)); err != nil {
		s.logger.Warn("failed to publish export event", "error", err)
	}
	return doc, nil
}

// Cutoff is the start of the day one calendar month before now, in now's location.
func Cutoff(now time.Time) time.Time {
	return clock.StartOfDay(now.AddDate(0, -1, 0))
}

func (s *Service) Cutoff() time.Time {
	return Cutoff(s.clock.Now())
}

// CountPending counts entries the next purge would delete.
func (s *Service) CountPending(ctx context.Context) (int64, error) {
	n, err := s.repo.CountBefore(ctx, s.Cutoff().UTC())
	if err != nil {
		return 0, fmt.Errorf("activity.CountPending: %w", err)
	}
	return n, nil
}

func (s *Service) ListPending(ctx context.Context) ([]*Entry, error) {
	rows, err := s.repo.ListBefore(ctx, s.Cutoff().UTC())
	if err != nil {
		return nil, fmt.Errorf("activity.ListPending: %w", err)
	}
	return fromRows(rows), nil
}

// Purge deletes every entry older than the cutoff. When an archiver is set the
// entries are archived first and nothing is deleted if archiving fails.
// actor is nil for the scheduled run.
func (s *Service) Purge(ctx context.Context, actor *identity.Actor) (*PurgeResult, error) {
	if actor != nil && !actor.IsSuperAdmin() {
		return nil, internal.NewForbiddenError("Only super admins can purge activity logs", internal.ErrCodeInsufficientRole)
	}

	cutoff := s.Cutoff()
	result := &PurgeResult{Cutoff: cutoff}

	if s.archiver != nil {
		rows, err := s.repo.ListBefore(ctx, cutoff.UTC())
		if err != nil {
			return nil, fmt.Errorf("activity.Purge: list: %w", err)
		}
		if len(rows) > 0 {
			location, err := s.archiver.Archive(ctx, cutoff, fromRows(rows))
			if err != nil {
				return nil, fmt.Errorf("activity.Purge: archive: %w", err)
			}
			s.logger.Info("activity logs archived", "count", len(rows), "location", location)
		}
	}

	deleted, err := s.repo.DeleteBefore(ctx, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("activity.Purge: delete: %w", err)
	}
	result.Deleted = deleted

	s.logger.Info("activity log purge finished", "deleted", deleted, "cutoff", cutoff.Format(time.DateOnly))

	if deleted > 0 {
		s.notifier.Notify(ctx, notification.SuperAdmins(), notification.Event{
			Kind:     action.LogCleanup,
			Details:  notification.CleanupDetails{DeletedCount: deleted, CutoffDate: cutoff},
			Priority: notification.PriorityHigh,
			Category: notification.CategorySystem,
		})
	}
	if deleted > 0 || actor != nil {
		s.recorder.Record(ctx, actor, action.LogCleanup, action.Target{Type: action.TargetSystem}, map[string]any{
			"deleted_count": deleted,
			"cutoff_date":   cutoff.Format(time.DateOnly),
		})
	}
	return result, nil
}

// DeleteLogs removes entries selected by an explicit filter. Super admins only.
func (s *Service) DeleteLogs(ctx context.Context, actor identity.Actor, filters BulkDeleteFilters) (int64, error) {
	if !actor.IsSuperAdmin() {
		return 0, internal.NewForbiddenError("Only super admins can delete activity logs", internal.ErrCodeInsufficientRole)
	}
	if filters.Before.IsZero() {
		return 0, internal.NewValidationFieldError("before", "before date is required", internal.ErrCodeValidationFailed)
	}
	if filters.Before.After(s.clock.Now()) {
		return 0, internal.NewValidationFieldError("before", "before date cannot be in the future", internal.ErrCodeInvalidDate)
	}
	if filters.ActionKind != "" && !action.Kind(filters.ActionKind).Valid() {
		return 0, internal.NewValidationFieldError("action", "unknown action: "+filters.ActionKind, internal.ErrCodeValidationFailed)
	}
	filters.Before = filters.Before.UTC()

	deleted, err := s.repo.DeleteMatching(ctx, filters)
	if err != nil {
		return 0, fmt.Errorf("activity.DeleteLogs: %w", err)
	}

	s.recorder.Record(ctx, &actor, action.DeleteLogs, action.Target{Type: action.TargetActivityLog}, map[string]any{
		"record_count": deleted,
		"before":       filters.Before.Format(time.RFC3339),
		"action":       filters.ActionKind,
		"district":     filters.District,
	})
	return deleted, nil
}

func validateFilters(f Filters) error {
	if f.ActionKind != "" && !action.Kind(f.ActionKind).Valid() {
		return internal.NewValidationFieldError("action", "unknown action: "+f.ActionKind, internal.ErrCodeValidationFailed)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return internal.NewValidationFieldError("from", "from must not be after to", internal.ErrCodeInvalidDate)
	}
	return nil
}

// narrow drops explicit filters the scope already decides.
func narrow(filter scope.Filter, f Filters) Filters {
	if filter.ByDistrict() {
		f.District = ""
	}
	if filter.ByActor() {
		f.ActorID = 0
	}
	if f.From != nil {
		from := f.From.UTC()
		f.From = &from
	}
	if f.To != nil {
		to := f.To.UTC()
		f.To = &to
	}
	return f
}
