package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/survey-management/internal/account"
	accountDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/account"
	submissionDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/submission"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/core/scope"
	"gorm.io/gorm"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) account.RepositoryAPI {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, acc *accountDatamodel.Account) error {
	return r.db.WithContext(ctx).Create(acc).Error
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*accountDatamodel.Account, error) {
	var acc accountDatamodel.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &acc, nil
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*accountDatamodel.Account, error) {
	var acc accountDatamodel.Account
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &acc, nil
}

func (r *AccountRepository) List(ctx context.Context, filter scope.Filter, filters account.ListFilters, page account.Page) ([]*accountDatamodel.Account, int64, error) {
	q := filter.Apply(r.db.WithContext(ctx).Model(&accountDatamodel.Account{}), "district", "id")

	if filters.Role != "" {
		q = q.Where("role = ?", filters.Role)
	}
	if filters.District != "" {
		q = q.Where("district = ?", filters.District)
	}
	if filters.Division != "" {
		q = q.Where("division = ?", filters.Division)
	}
	if filters.IsActive != nil {
		q = q.Where("is_active = ?", *filters.IsActive)
	}
	if filters.Search != "" {
		like := "%" + filters.Search + "%"
		q = q.Where("(username LIKE ? OR full_name LIKE ?)", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Order("id ASC")
	if page.Limit > 0 {
		q = q.Limit(page.Limit).Offset(page.Offset)
	}

	var accounts []*accountDatamodel.Account
	if err := q.Find(&accounts).Error; err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

func (r *AccountRepository) Update(ctx context.Context, acc *accountDatamodel.Account) error {
	return r.db.WithContext(ctx).Save(acc).Error
}

func (r *AccountRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&accountDatamodel.Account{}, id).Error
}

func (r *AccountRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&accountDatamodel.Account{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

func (r *AccountRepository) FindActiveDistrictAdmin(ctx context.Context, district string, excludeID int64) (*accountDatamodel.Account, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).
		Where("role = ? AND district = ? AND is_active = ? AND id <> ?",
			string(identity.RoleDistrictAdmin), district, true, excludeID))
}

func (r *AccountRepository) FindActiveDivisionUser(ctx context.Context, district, division string, excludeID int64) (*accountDatamodel.Account, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).
		Where("role = ? AND district = ? AND division = ? AND is_active = ? AND id <> ?",
			string(identity.RoleDivisionUser), district, division, true, excludeID))
}

func (r *AccountRepository) findOne(_ context.Context, q *gorm.DB) (*accountDatamodel.Account, error) {
	var acc accountDatamodel.Account
	err := q.Order("id ASC").First(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &acc, nil
}

// ListActive returns active accounts with a role in roles, plus active accounts
// with a role in districtRoles belonging to district. Rows are unique by id.
func (r *AccountRepository) ListActive(ctx context.Context, roles []string, districtRoles []string, district string) ([]*accountDatamodel.Account, error) {
	if len(roles) == 0 && (len(districtRoles) == 0 || district == "") {
		return nil, nil
	}

	q := r.db.WithContext(ctx).Where("is_active = ?", true)
	switch {
	case len(roles) > 0 && len(districtRoles) > 0 && district != "":
		q = q.Where(r.db.Where("role IN ?", roles).
			Or("role IN ? AND district = ?", districtRoles, district))
	case len(roles) > 0:
		q = q.Where("role IN ?", roles)
	default:
		q = q.Where("role IN ? AND district = ?", districtRoles, district)
	}

	var accounts []*accountDatamodel.Account
	if err := q.Order("id ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *AccountRepository) ListInactiveDivisionUsers(ctx context.Context, since time.Time) ([]*accountDatamodel.Account, error) {
	recent := r.db.Model(&submissionDatamodel.Submission{}).
		Select("submitted_by").
		Where("created_at >= ?", since)

	var accounts []*accountDatamodel.Account
	err := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", string(identity.RoleDivisionUser), true).
		Where("id NOT IN (?)", recent).
		Order("district ASC, division ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
