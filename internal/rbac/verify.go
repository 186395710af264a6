package rbac

import (
	"context"

	"worktrack/server/internal/auth"
	"worktrack/server/internal/model"
)

// AccountSource is the account lookup the verifier and management authorizer
// need. The repository satisfies it; tests use an in-memory fake.
type AccountSource interface {
	AccountByID(ctx context.Context, id string) (model.Account, bool, error)
}

// Verifier resolves a bearer credential to a live account.
type Verifier struct {
	Secret   string
	Issuer   string
	Accounts AccountSource
}

// Verify decodes the signed claim, resolves the account, and rejects
// disabled accounts. Verification is stateless aside from the lookup.
func (v *Verifier) Verify(ctx context.Context, token string) (model.Account, error) {
	if token == "" {
		return model.Account{}, newError(CodeInvalidCredential, "no token provided")
	}
	claims, err := auth.ParseToken(v.Secret, v.Issuer, token)
	if err != nil {
		return model.Account{}, newError(CodeInvalidCredential, "invalid or expired token")
	}
	account, ok, err := v.Accounts.AccountByID(ctx, claims.UserID)
	if err != nil {
		return model.Account{}, err
	}
	if !ok {
		return model.Account{}, newError(CodeAccountNotFound, "account not found")
	}
	if !account.IsActive {
		return model.Account{}, newError(CodeAccountDisabled, "account is deactivated")
	}
	return account, nil
}
