package identity

// Role is the access level granted to a user
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleSalesRep Role = "sales_rep"
)

// AllRoles lists the known roles, most privileged first
var AllRoles = []Role{RoleAdmin, RoleManager, RoleSalesRep}

// IsValid reports whether the role is known
func (r Role) IsValid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role has full access
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Includes reports whether r grants at least the privileges of other
func (r Role) Includes(other Role) bool {
	return r.rank() >= other.rank()
}

func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleSalesRep:
		return 1
	}
	return 0
}
