package postgres

import (
	"context"
	"errors"
	"time"

	submissionDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/submission"
	"github.com/frahmantamala/survey-management/internal/core/scope"
	"github.com/frahmantamala/survey-management/internal/submission"
	"gorm.io/gorm"
)

type SubmissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) submission.RepositoryAPI {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, row *submissionDatamodel.Submission) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id int64) (*submissionDatamodel.Submission, error) {
	var row submissionDatamodel.Submission
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *SubmissionRepository) List(ctx context.Context, filter scope.Filter, filters submission.Filters, page submission.Page) ([]*submissionDatamodel.Submission, int64, error) {
	q := r.db.WithContext(ctx).Model(&submissionDatamodel.Submission{})
	q = filter.Apply(q, "district", "submitted_by")

	if filters.District != "" {
		q = q.Where("district = ?", filters.District)
	}
	if filters.Division != "" {
		q = q.Where("division = ?", filters.Division)
	}
	if filters.SubDivision != "" {
		q = q.Where("sub_division = ?", filters.SubDivision)
	}
	if filters.From != nil {
		q = q.Where("created_at >= ?", filters.From.UTC())
	}
	if filters.To != nil {
		q = q.Where("created_at <= ?", filters.To.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*submissionDatamodel.Submission
	q = q.Order("created_at DESC").Order("id DESC").Offset(page.Offset)
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CountByDistrict groups submissions by district. Nil bounds are open.
func (r *SubmissionRepository) CountByDistrict(ctx context.Context, from, to *time.Time) ([]submission.DistrictCount, error) {
	q := r.db.WithContext(ctx).Model(&submissionDatamodel.Submission{}).
		Select("district, COUNT(*) AS n")
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at < ?", *to)
	}

	var counts []submission.DistrictCount
	if err := q.Group("district").Order("district").Scan(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}
