package auth

import (
	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/core/common/validation"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (d LoginDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("username", d.Username).Required()
	v.Field("password", d.Password).Required()
	return v.Validate()
}
