package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	"github.com/frahmantamala/survey-management/internal/core/identity"
)

// Service is the recipient-facing side: every operation is confined to the
// requesting account's own notifications.
type Service struct {
	repo   RepositoryAPI
	clock  clock.Clock
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{repo: repo, clock: clk, logger: logger}
}

func (s *Service) List(ctx context.Context, actor identity.Actor, filters ListFilters, page Page) (*ListResult, error) {
	if filters.Category != "" && !filters.Category.Valid() {
		return nil, internal.NewValidationFieldError("category", "unknown category: "+string(filters.Category), internal.ErrCodeValidationFailed)
	}
	if page.Limit <= 0 || page.Limit > 200 {
		page.Limit = 50
	}
	if page.Offset < 0 {
		page.Offset = 0
	}

	rows, total, err := s.repo.List(ctx, actor.ID, filters, page)
	if err != nil {
		return nil, fmt.Errorf("notification.List: %w", err)
	}
	unread, err := s.repo.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("notification.List: count unread: %w", err)
	}
	return &ListResult{Notifications: fromRows(rows), Total: total, UnreadCount: unread}, nil
}

func (s *Service) UnreadCount(ctx context.Context, actor identity.Actor) (int64, error) {
	n, err := s.repo.CountUnread(ctx, actor.ID)
	if err != nil {
		return 0, fmt.Errorf("notification.UnreadCount: %w", err)
	}
	return n, nil
}

// MarkRead is idempotent for already-read notifications.
func (s *Service) MarkRead(ctx context.Context, actor identity.Actor, id int64) (*Notification, error) {
	row, err := s.repo.GetForRecipient(ctx, id, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("notification.MarkRead: %w", err)
	}
	if row == nil {
		return nil, internal.ErrNotificationNotFound
	}
	if row.IsRead {
		return FromDataModel(row), nil
	}

	now := s.clock.Now().UTC()
	if err := s.repo.MarkRead(ctx, id, actor.ID, now); err != nil {
		return nil, fmt.Errorf("notification.MarkRead: %w", err)
	}
	row.IsRead = true
	row.ReadAt = &now
	return FromDataModel(row), nil
}

func (s *Service) MarkAllRead(ctx context.Context, actor identity.Actor) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, actor.ID, s.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("notification.MarkAllRead: %w", err)
	}
	return n, nil
}

// Delete removes one of the actor's notifications. Someone else's id reports
// not found rather than forbidden.
func (s *Service) Delete(ctx context.Context, actor identity.Actor, id int64) error {
	n, err := s.repo.Delete(ctx, id, actor.ID)
	if err != nil {
		return fmt.Errorf("notification.Delete: %w", err)
	}
	if n == 0 {
		return internal.ErrNotificationNotFound
	}
	return nil
}

func (s *Service) ClearRead(ctx context.Context, actor identity.Actor) (int64, error) {
	n, err := s.repo.DeleteRead(ctx, actor.ID)
	if err != nil {
		return 0, fmt.Errorf("notification.ClearRead: %w", err)
	}
	return n, nil
}
