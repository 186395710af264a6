package rbac

import (
	"context"

	"worktrack/server/internal/model"
)

// Manager decides whether a caller may modify a target account.
type Manager struct {
	Accounts AccountSource
}

// CanManage evaluates, in order: target id present, super-admin override,
// self-service, target existence, admin classroom pinning, and finally the
// rank comparison. The first matching rule wins.
func (m *Manager) CanManage(ctx context.Context, caller model.Account, targetID string) error {
	if targetID == "" {
		return newError(CodeTargetRequired, "user id required")
	}
	if caller.Role == RoleSuperAdmin {
		return nil
	}
	if caller.ID == targetID {
		return nil
	}
	target, ok, err := m.Accounts.AccountByID(ctx, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return newError(CodeTargetNotFound, "target user not found")
	}
	if caller.Role == RoleAdmin {
		if classroom := classroomOf(caller); classroom != "" && classroomOf(target) != classroom {
			return newError(CodeClassroomMismatch, "you can only manage users in your classroom")
		}
	}
	if Rank(caller.Role) < Rank(target.Role) {
		return newError(CodeInsufficientRank, "you don't have permission to manage this user")
	}
	return nil
}

// AuthorizeRoleChange validates a role reassignment as one combined
// transition: requested role validity, the super-admin assignment ceiling,
// and both rank comparisons. Callers still gate the operation itself with
// RequireMinRole and CanManage.
func AuthorizeRoleChange(caller, target model.Account, newRole string) error {
	if !ValidRole(newRole) {
		return newError(CodeInsufficientRole, "invalid role")
	}
	if newRole == RoleSuperAdmin && caller.Role != RoleSuperAdmin {
		return newError(CodeInsufficientRank, "only super admins can assign the super admin role")
	}
	if Rank(caller.Role) < Rank(newRole) {
		return newError(CodeInsufficientRank, "cannot assign a role above your own")
	}
	if Rank(caller.Role) < Rank(target.Role) {
		return newError(CodeInsufficientRank, "you don't have permission to manage this user")
	}
	return nil
}

// AuthorizeDeactivate rejects deactivation or deletion of super_admin
// accounts by any caller, including themselves.
func AuthorizeDeactivate(target model.Account) error {
	if target.Role == RoleSuperAdmin {
		return newError(CodeInsufficientRank, "super admin accounts cannot be deactivated")
	}
	return nil
}
