package account

import (
	"time"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/core/common/validation"
	"github.com/frahmantamala/survey-management/internal/core/identity"
)

type CreateAccountDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	District string `json:"district"`
	Division string `json:"division"`
}

// Validate checks shape only; hierarchy and uniqueness are the service's job.
func (d CreateAccountDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("username", d.Username).Required().MinLength(3).MaxLength(50)
	v.Field("password", d.Password).Required().MinLength(8).MaxLength(72)
	v.Field("full_name", d.FullName).MaxLength(120)
	v.Field("email", d.Email).Email()
	v.Field("role", d.Role).Required().OneOf(internal.ErrCodeInvalidRole,
		string(identity.RoleSuperAdmin), string(identity.RoleDistrictAdmin), string(identity.RoleDivisionUser))

	switch identity.Role(d.Role) {
	case identity.RoleDistrictAdmin:
		v.Field("district", d.District).Required()
	case identity.RoleDivisionUser:
		v.Field("district", d.District).Required()
		v.Field("division", d.Division).Required()
	}
	return v.Validate()
}

type UpdateAccountDTO struct {
	FullName *string `json:"full_name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Division *string `json:"division,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (d UpdateAccountDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	if d.FullName != nil {
		v.Field("full_name", *d.FullName).MaxLength(120)
	}
	if d.Email != nil {
		v.Field("email", *d.Email).Email()
	}
	if d.Division != nil {
		v.Field("division", *d.Division).Required()
	}
	return v.Validate()
}

type ChangePasswordDTO struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (d ChangePasswordDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("current_password", d.CurrentPassword).Required()
	v.Field("new_password", d.NewPassword).Required().MinLength(8).MaxLength(72)
	return v.Validate()
}

type ResetPasswordDTO struct {
	NewPassword string `json:"new_password"`
}

func (d ResetPasswordDTO) Validate() *internal.AppError {
	return validation.ValidatePassword("new_password", d.NewPassword)
}

type ListFilters struct {
	Role     string
	District string
	Division string
	IsActive *bool
	Search   string
}

type Page struct {
	Limit  int
	Offset int
}

type AccountResponse struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	District    string     `json:"district,omitempty"`
	Division    string     `json:"division,omitempty"`
	IsActive    bool       `json:"is_active"`
	CreatedBy   *int64     `json:"created_by,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type AccountEnvelope struct {
	Message string          `json:"message"`
	User    AccountResponse `json:"user"`
}

type AccountsResponse struct {
	Message string            `json:"message"`
	Users   []AccountResponse `json:"users"`
	Total   int64             `json:"total"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func toResponses(accounts []*Account) []AccountResponse {
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.ToResponse())
	}
	return out
}
