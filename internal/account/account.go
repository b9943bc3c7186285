package account

import (
	"time"

	accountDatamodel "github.com/frahmantamala/survey-management/internal/core/datamodel/account"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"golang.org/x/crypto/bcrypt"
)

type Account struct {
	ID           int64         `json:"id"`
	Username     string        `json:"username"`
	PasswordHash string        `json:"-"`
	FullName     string        `json:"full_name"`
	Email        string        `json:"email"`
	Role         identity.Role `json:"role"`
	District     string        `json:"district,omitempty"`
	Division     string        `json:"division,omitempty"`
	IsActive     bool          `json:"is_active"`
	CreatedBy    *int64        `json:"created_by,omitempty"`
	LastLoginAt  *time.Time    `json:"last_login_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (a *Account) Actor() identity.Actor {
	return identity.Actor{
		ID:       a.ID,
		Username: a.Username,
		Role:     a.Role,
		District: a.District,
		Division: a.Division,
	}
}

func (a *Account) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}

// ManagedBy reports whether actor is a hierarchical superior of a: super admins
// manage everyone but themselves, district admins manage the division users of
// their own district.
func (a *Account) ManagedBy(actor identity.Actor) bool {
	if actor.ID == a.ID {
		return false
	}
	switch actor.Role {
	case identity.RoleSuperAdmin:
		return true
	case identity.RoleDistrictAdmin:
		return a.Role == identity.RoleDivisionUser && a.District == actor.District
	}
	return false
}

// VisibleTo: a manager or the account itself.
func (a *Account) VisibleTo(actor identity.Actor) bool {
	return actor.ID == a.ID || a.ManagedBy(actor)
}

func (a *Account) ToResponse() AccountResponse {
	return AccountResponse{
		ID:          a.ID,
		Username:    a.Username,
		FullName:    a.FullName,
		Email:       a.Email,
		Role:        string(a.Role),
		District:    a.District,
		Division:    a.Division,
		IsActive:    a.IsActive,
		CreatedBy:   a.CreatedBy,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func ToDataModel(a *Account) *accountDatamodel.Account {
	return &accountDatamodel.Account{
		ID:           a.ID,
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
		FullName:     a.FullName,
		Email:        a.Email,
		Role:         string(a.Role),
		District:     optional(a.District),
		Division:     optional(a.Division),
		IsActive:     a.IsActive,
		CreatedBy:    a.CreatedBy,
		LastLoginAt:  a.LastLoginAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func FromDataModel(a *accountDatamodel.Account) *Account {
	return &Account{
		ID:           a.ID,
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
		FullName:     a.FullName,
		Email:        a.Email,
		Role:         identity.Role(a.Role),
		District:     deref(a.District),
		Division:     deref(a.Division),
		IsActive:     a.IsActive,
		CreatedBy:    a.CreatedBy,
		LastLoginAt:  a.LastLoginAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
