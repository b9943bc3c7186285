package postgres

import (
	"context"
	"time"

	"github.com/frahmantamala/survey-management/internal/activity"
	"github.com/frahmantamala/survey-management/internal/core/scope"
	"github.com/jmoiron/sqlx"
)

// StatsRepository runs the aggregate queries with plain SQL through sqlx.
type StatsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) activity.StatsRepositoryAPI {
	return &StatsRepository{db: db}
}

type actionCount struct {
	ActionKind string `db:"action_kind"`
	Count      int64  `db:"n"`
}

func (r *StatsRepository) CountByAction(ctx context.Context, filter scope.Filter) (map[string]int64, error) {
	where, args := filter.SQL("district", "actor_id")
	query := r.db.Rebind(`SELECT action_kind, COUNT(*) AS n FROM activity_logs WHERE ` + where + ` GROUP BY action_kind`)

	var rows []actionCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.ActionKind] = row.Count
	}
	return out, nil
}

func (r *StatsRepository) CountSince(ctx context.Context, filter scope.Filter, since time.Time) (int64, error) {
	where, args := filter.SQL("district", "actor_id")
	query := r.db.Rebind(`SELECT COUNT(*) FROM activity_logs WHERE ` + where + ` AND created_at >= ?`)

	var n int64
	if err := r.db.GetContext(ctx, &n, query, append(args, since)...); err != nil {
		return 0, err
	}
	return n, nil
}
