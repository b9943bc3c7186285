package identity

type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleDistrictAdmin Role = "district_admin"
	RoleDivisionUser  Role = "division_user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleDistrictAdmin, RoleDivisionUser:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// RoleStrings converts roles for use as query arguments.
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// Actor is the authenticated account acting on a request or the subject of a fanout.
// District and Division are empty when the role carries no such scope.
type Actor struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	District string `json:"district,omitempty"`
	Division string `json:"division,omitempty"`
}

func (a Actor) IsSuperAdmin() bool    { return a.Role == RoleSuperAdmin }
func (a Actor) IsDistrictAdmin() bool { return a.Role == RoleDistrictAdmin }
func (a Actor) IsDivisionUser() bool  { return a.Role == RoleDivisionUser }

// HasRole reports whether the actor holds any of roles.
func (a Actor) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
