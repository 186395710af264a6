package rbac

import "errors"

// Code identifies a terminal authorization failure. The HTTP layer maps each
// code to a status; the core only distinguishes kinds.
type Code string

const (
	CodeInvalidCredential      Code = "invalid_credential"
	CodeAccountNotFound        Code = "account_not_found"
	CodeAccountDisabled        Code = "account_disabled"
	CodeAuthenticationRequired Code = "authentication_required"
	CodeInsufficientRole       Code = "insufficient_role"
	CodeInsufficientRank       Code = "insufficient_rank"
	CodeClassroomMismatch      Code = "classroom_mismatch"
	CodeTargetRequired         Code = "target_required"
	CodeTargetNotFound         Code = "target_not_found"
	CodeSecretKeyRequired      Code = "secret_key_required"
	CodeInvalidSecretKey       Code = "invalid_secret_key"
	CodeSecretKeyExpired       Code = "secret_key_expired"
	CodeElevatedRoleForbidden  Code = "elevated_role_forbidden"
)

type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewError is the constructor for callers outside the package (the HTTP layer
// raises target_required/target_not_found before reaching the authorizers).
func NewError(code Code, message string) *Error {
	return newError(code, message)
}

// CodeOf extracts the failure code from err, or "" for non-rbac errors.
func CodeOf(err error) Code {
	var rbacErr *Error
	if errors.As(err, &rbacErr) {
		return rbacErr.Code
	}
	return ""
}
