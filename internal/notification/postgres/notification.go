package postgres

import (
	"context"
	"errors"
	"time"

	notificationDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/notification"
	"github.com/frahmantamala/survey-management/internal/notification"
	"gorm.io/gorm"
)

const batchSize = 200

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) notification.RepositoryAPI {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) CreateBatch(ctx context.Context, rows []*notificationDatamodel.Notification) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, batchSize).Error
}

func (r *NotificationRepository) Update(ctx context.Context, row *notificationDatamodel.Notification) error {
	return r.db.WithContext(ctx).Model(&notificationDatamodel.Notification{}).
		Where("id = ?", row.ID).
		Updates(map[string]interface{}{
			"message":    row.Message,
			"details":    row.Details,
			"priority":   row.Priority,
			"updated_at": row.UpdatedAt,
		}).Error
}

func (r *NotificationRepository) LatestUnreadByKey(ctx context.Context, recipientID int64, key string, since time.Time) (*notificationDatamodel.Notification, error) {
	var row notificationDatamodel.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND coalesce_key = ? AND is_read = ? AND created_at >= ?", recipientID, key, false, since).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *NotificationRepository) List(ctx context.Context, recipientID int64, filters notification.ListFilters, page notification.Page) ([]*notificationDatamodel.Notification, int64, error) {
	q := r.db.WithContext(ctx).Model(&notificationDatamodel.Notification{}).Where("recipient_id = ?", recipientID)
	if filters.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if filters.Category != "" {
		q = q.Where("category = ?", string(filters.Category))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*notificationDatamodel.Notification
	q = q.Order("created_at DESC").Order("id DESC").Offset(page.Offset)
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&notificationDatamodel.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&n).Error
	return n, err
}

func (r *NotificationRepository) GetForRecipient(ctx context.Context, id, recipientID int64) (*notificationDatamodel.Notification, error) {
	var row notificationDatamodel.Notification
	err := r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&notificationDatamodel.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Updates(map[string]interface{}{"is_read": true, "read_at": at}).Error
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID int64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&notificationDatamodel.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) Delete(ctx context.Context, id, recipientID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).
		Delete(&notificationDatamodel.Notification{})
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) DeleteRead(ctx context.Context, recipientID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("recipient_id = ? AND is_read = ?", recipientID, true).
		Delete(&notificationDatamodel.Notification{})
	return res.RowsAffected, res.Error
}
