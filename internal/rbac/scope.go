package rbac

import "worktrack/server/internal/model"

// Scope is the read-visibility restriction derived from a caller's role and
// classroom. A zero Classroom/Department with All=false still means "no
// restriction on that dimension".
type Scope struct {
	All        bool
	Classroom  string
	Department string
}

func classroomOf(account model.Account) string {
	if account.Classroom == nil {
		return ""
	}
	return *account.Classroom
}

func departmentOf(account model.Account) string {
	if account.Department == nil {
		return ""
	}
	return *account.Department
}

// VisibilityScope derives what the caller may read. Callers must be
// pre-gated with RequireMinRole(RoleHR); employees never reach this filter.
//
// When an admin or hr account has no classroom, the scope deliberately
// degrades to "see all" rather than "see none" — do not tighten this without
// a policy decision.
func VisibilityScope(caller model.Account) Scope {
	switch caller.Role {
	case RoleSuperAdmin:
		return Scope{All: true}
	case RoleAdmin:
		if classroom := classroomOf(caller); classroom != "" {
			return Scope{Classroom: classroom}
		}
		return Scope{All: true}
	case RoleManager:
		scope := Scope{
			Classroom:  classroomOf(caller),
			Department: departmentOf(caller),
		}
		if scope.Classroom == "" && scope.Department == "" {
			return Scope{All: true}
		}
		return scope
	case RoleHR:
		if classroom := classroomOf(caller); classroom != "" {
			return Scope{Classroom: classroom}
		}
		return Scope{All: true}
	}
	return Scope{All: true}
}

// Matches reports whether the target account falls inside the scope.
// Classroom labels compare case-sensitively with no hierarchy.
func (s Scope) Matches(target model.Account) bool {
	if s.All {
		return true
	}
	if s.Classroom != "" && classroomOf(target) != s.Classroom {
		return false
	}
	if s.Department != "" && departmentOf(target) != s.Department {
		return false
	}
	return true
}

// CanViewAccount decides whether the caller may read a single target's
// records: self always, hr and above otherwise, with admin and hr pinned to
// their classroom when they have one.
func CanViewAccount(caller, target model.Account) error {
	if caller.ID == target.ID {
		return nil
	}
	if err := RequireMinRole(&caller, RoleHR); err != nil {
		return err
	}
	if caller.Role == RoleSuperAdmin {
		return nil
	}
	if caller.Role == RoleAdmin || caller.Role == RoleHR {
		if classroom := classroomOf(caller); classroom != "" && classroomOf(target) != classroom {
			return newError(CodeClassroomMismatch, "you can only view records for users in your classroom")
		}
	}
	return nil
}
