package postgres

import (
	"context"
	"time"

	"github.com/frahmantamala/survey-management/internal/activity"
	activityDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/activity"
	"github.com/frahmantamala/survey-management/internal/core/scope"
	"gorm.io/gorm"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) activity.RepositoryAPI {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, entry *activityDatamodel.Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *ActivityRepository) List(ctx context.Context, filter scope.Filter, filters activity.Filters, page activity.Page) ([]*activityDatamodel.Entry, int64, error) {
	q := r.db.WithContext(ctx).Model(&activityDatamodel.Entry{})
	q = filter.Apply(q, "district", "actor_id")

	if filters.ActionKind != "" {
		q = q.Where("action_kind = ?", filters.ActionKind)
	}
	if filters.District != "" {
		q = q.Where("district = ?", filters.District)
	}
	if filters.Division != "" {
		q = q.Where("division = ?", filters.Division)
	}
	if filters.ActorID != 0 {
		q = q.Where("actor_id = ?", filters.ActorID)
	}
	if filters.From != nil {
		q = q.Where("created_at >= ?", *filters.From)
	}
	if filters.To != nil {
		q = q.Where("created_at <= ?", *filters.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*activityDatamodel.Entry
	q = q.Order("created_at DESC").Order("id DESC").Offset(page.Offset)
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *ActivityRepository) CountBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&activityDatamodel.Entry{}).
		Where("created_at < ?", cutoff).
		Count(&n).Error
	return n, err
}

func (r *ActivityRepository) ListBefore(ctx context.Context, cutoff time.Time) ([]*activityDatamodel.Entry, error) {
	var rows []*activityDatamodel.Entry
	err := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *ActivityRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&activityDatamodel.Entry{})
	return res.RowsAffected, res.Error
}

func (r *ActivityRepository) DeleteMatching(ctx context.Context, filters activity.BulkDeleteFilters) (int64, error) {
	q := r.db.WithContext(ctx).Where("created_at < ?", filters.Before)
	if filters.ActionKind != "" {
		q = q.Where("action_kind = ?", filters.ActionKind)
	}
	if filters.District != "" {
		q = q.Where("district = ?", filters.District)
	}
	res := q.Delete(&activityDatamodel.Entry{})
	return res.RowsAffected, res.Error
}
