// Package scope derives the implicit query restriction from the requester's role.
// Every query-style operation (activity logs, submissions, account listings)
// goes through FilterFor so the district clamp is expressed in one place.
package scope

import (
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"gorm.io/gorm"
)

type Filter struct {
	Unrestricted bool
	District     string
	ActorID      int64
}

// FilterFor: super admins see everything, district admins are clamped to their
// district, anyone else only sees rows they own.
func FilterFor(actor identity.Actor) Filter {
	switch actor.Role {
	case identity.RoleSuperAdmin:
		return Filter{Unrestricted: true}
	case identity.RoleDistrictAdmin:
		return Filter{District: actor.District}
	default:
		return Filter{ActorID: actor.ID}
	}
}

func (f Filter) ByDistrict() bool { return !f.Unrestricted && f.District != "" }

func (f Filter) ByActor() bool { return !f.Unrestricted && f.District == "" }

// Apply narrows q. districtColumn and actorColumn name the columns holding the
// row's district and owning account.
func (f Filter) Apply(q *gorm.DB, districtColumn, actorColumn string) *gorm.DB {
	switch {
	case f.Unrestricted:
		return q
	case f.ByDistrict():
		return q.Where(districtColumn+" = ?", f.District)
	default:
		return q.Where(actorColumn+" = ?", f.ActorID)
	}
}

// SQL renders the filter as a where fragment with "?" placeholders. An
// unrestricted filter yields "1=1".
func (f Filter) SQL(districtColumn, actorColumn string) (string, []any) {
	switch {
	case f.Unrestricted:
		return "1=1", nil
	case f.ByDistrict():
		return districtColumn + " = ?", []any{f.District}
	default:
		return actorColumn + " = ?", []any{f.ActorID}
	}
}

// Allows checks a single already-loaded row against the filter.
func (f Filter) Allows(district string, actorID int64) bool {
	switch {
	case f.Unrestricted:
		return true
	case f.ByDistrict():
		return district == f.District
	default:
		return actorID == f.ActorID
	}
}
