package rbac

import (
	"strings"

	"worktrack/server/internal/model"
)

// RequireRole admits only accounts whose role is literally in the allowed
// set.
func RequireRole(account *model.Account, allowedRoles ...string) error {
	if account == nil {
		return newError(CodeAuthenticationRequired, "authentication required")
	}
	for _, role := range allowedRoles {
		if account.Role == role {
			return nil
		}
	}
	return newError(CodeInsufficientRole, "access denied, required role: "+strings.Join(allowedRoles, " or "))
}

// RequireMinRole admits accounts with rank at or above minRole.
func RequireMinRole(account *model.Account, minRole string) error {
	if account == nil {
		return newError(CodeAuthenticationRequired, "authentication required")
	}
	if !AtLeast(account.Role, minRole) {
		return newError(CodeInsufficientRole, "access denied, minimum required role: "+minRole)
	}
	return nil
}
