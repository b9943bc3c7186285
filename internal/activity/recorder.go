package activity

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/core/action"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/pkg/logger"
	"github.com/frahmantamala/survey-management/pkg/metrics"
)

// Recorder appends audit entries. It never fails the caller: write errors are
// logged and counted, then dropped.
type Recorder struct {
	repo   RepositoryAPI
	clock  clock.Clock
	logger *slog.Logger
}

func NewRecorder(repo RepositoryAPI, clk clock.Clock, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, clock: clk, logger: logger}
}

// Record stores one entry. actor may be nil for system actions and anonymous
// failed logins. Source address and user agent come from the request context.
func (r *Recorder) Record(ctx context.Context, actor *identity.Actor, kind action.Kind, target action.Target, details map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.AuditWriteFailures.Inc()
			r.logger.Error("activity record panicked", "action", kind, "panic", rec)
		}
	}()

	src := internal.RequestSourceFromContext(ctx)
	entry := &Entry{
		ActionKind:    kind,
		TargetType:    target.Type,
		TargetID:      target.ID,
		Details:       details,
		SourceAddress: src.Address,
		UserAgent:     src.UserAgent,
		CreatedAt:     r.clock.Now().UTC(),
	}
	if actor != nil {
		id := actor.ID
		entry.ActorID = &id
		entry.ActorUsername = actor.Username
		entry.ActorRole = string(actor.Role)
		entry.District = actor.District
		entry.Division = actor.Division
	}

	if err := r.repo.Create(context.WithoutCancel(ctx), ToDataModel(entry)); err != nil {
		metrics.AuditWriteFailures.Inc()
		logger.FromContext(ctx).Error("failed to record activity",
			"action", kind,
			"target_type", target.Type,
			"target_id", target.ID,
			"error", err)
	}
}
