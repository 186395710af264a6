package rbac

// Role hierarchy: super_admin > admin > manager > hr > employee.
// This table is the single source of truth for rank comparisons; call sites
// must never embed their own copy.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleHR         = "hr"
	RoleEmployee   = "employee"
)

var roleRanks = map[string]int{
	RoleSuperAdmin: 5,
	RoleAdmin:      4,
	RoleManager:    3,
	RoleHR:         2,
	RoleEmployee:   1,
}

// rolesByRank is ordered highest first.
var rolesByRank = []string{RoleSuperAdmin, RoleAdmin, RoleManager, RoleHR, RoleEmployee}

// Rank maps a role to its level in the hierarchy. Unknown roles rank 0 and
// therefore fail every minimum-role check.
func Rank(role string) int {
	return roleRanks[role]
}

func AtLeast(role, minRole string) bool {
	return Rank(role) >= Rank(minRole)
}

func ValidRole(role string) bool {
	_, ok := roleRanks[role]
	return ok
}

// Elevated reports whether self-registration into the role requires a secret
// key. super_admin is elevated too, but is rejected outright at redemption.
func Elevated(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleManager, RoleHR:
		return true
	default:
		return false
	}
}

// GeneratableRoles returns the roles an issuer may mint keys for: every
// enumerated role strictly below the issuer's own rank, highest first.
func GeneratableRoles(issuerRole string) []string {
	issuerRank := Rank(issuerRole)
	var roles []string
	for _, role := range rolesByRank {
		if roleRanks[role] < issuerRank {
			roles = append(roles, role)
		}
	}
	return roles
}
