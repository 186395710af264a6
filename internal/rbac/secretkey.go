package rbac

import (
	"context"
	"time"

	"github.com/google/uuid"

	"worktrack/server/internal/crypto"
	"worktrack/server/internal/model"
)

// KeyStore is the secret-key persistence the protocol needs.
type KeyStore interface {
	InsertKey(ctx context.Context, key model.SecretKey) error
	// ActiveKey finds a key by exact string, target role, and isActive=true.
	ActiveKey(ctx context.Context, key, role string) (model.SecretKey, bool, error)
	// ClaimKey marks the key used if and only if it has not been claimed yet,
	// returning false when another redemption won the race.
	ClaimKey(ctx context.Context, keyID, usedBy string, usedAt time.Time) (bool, error)
	KeyByID(ctx context.Context, id string) (model.SecretKey, bool, error)
	DeactivateKey(ctx context.Context, id string) error
}

// KeyProtocol implements issuance, redemption, and revocation of the secret
// keys that gate self-registration into elevated roles.
type KeyProtocol struct {
	Keys KeyStore
	// FallbackSecret is the environment-level shared secret accepted when no
	// key record matches. Empty disables the fallback path.
	FallbackSecret string
	Now            func() time.Time
}

func (p *KeyProtocol) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

type IssueRequest struct {
	Role          string
	Classroom     string
	ExpiresInDays *int
}

// Issue mints a key for a role strictly below the issuer's rank. Issuers
// with a classroom can only hand out their own classroom; a super_admin (or
// an issuer with no classroom) passes the requested classroom through.
func (p *KeyProtocol) Issue(ctx context.Context, caller model.Account, req IssueRequest) (model.SecretKey, error) {
	if err := RequireMinRole(&caller, RoleHR); err != nil {
		return model.SecretKey{}, err
	}
	if !ValidRole(req.Role) || Rank(req.Role) >= Rank(caller.Role) {
		return model.SecretKey{}, newError(CodeInsufficientRank, "you can only generate keys for roles below your own")
	}

	classroom := req.Classroom
	if caller.Role != RoleSuperAdmin {
		if own := classroomOf(caller); own != "" {
			classroom = own
		}
	}

	var expiresAt *time.Time
	if req.ExpiresInDays != nil && *req.ExpiresInDays > 0 {
		expiry := p.now().AddDate(0, 0, *req.ExpiresInDays)
		expiresAt = &expiry
	}

	keyString, err := crypto.NewSecretKey()
	if err != nil {
		return model.SecretKey{}, err
	}

	key := model.SecretKey{
		ID:              uuid.NewString(),
		Key:             keyString,
		Role:            req.Role,
		GeneratedBy:     caller.ID,
		GeneratedByRole: caller.Role,
		IsActive:        true,
		ExpiresAt:       expiresAt,
		CreatedAt:       p.now(),
	}
	if classroom != "" {
		key.Classroom = &classroom
	}
	if own := classroomOf(caller); own != "" {
		key.GeneratedByClassroom = &own
	}

	if err := p.Keys.InsertKey(ctx, key); err != nil {
		return model.SecretKey{}, err
	}
	return key, nil
}

type RedemptionSource string

const (
	SourceNone         RedemptionSource = ""
	SourceIssuedKey    RedemptionSource = "issued_key"
	SourceSharedSecret RedemptionSource = "shared_secret"
)

// Redemption is the outcome of a successful key check during registration.
// The two sources stay distinguishable so shared-secret registrations can be
// told apart from normal key redemptions.
type Redemption struct {
	Source    RedemptionSource
	Classroom *string
	Key       *model.SecretKey
}

// Redeem validates a registration into targetRole. newAccountID is the id
// the registering account will be created with; the key is claimed for it
// atomically, so two concurrent registrations cannot both consume one key.
func (p *KeyProtocol) Redeem(ctx context.Context, keyString, targetRole, newAccountID string) (Redemption, error) {
	if targetRole == RoleSuperAdmin {
		return Redemption{}, newError(CodeElevatedRoleForbidden, "super admin accounts cannot be created through registration")
	}
	if !Elevated(targetRole) {
		return Redemption{}, nil
	}
	if keyString == "" {
		return Redemption{}, newError(CodeSecretKeyRequired, "secret key is required to register as "+targetRole)
	}

	key, ok, err := p.Keys.ActiveKey(ctx, keyString, targetRole)
	if err != nil {
		return Redemption{}, err
	}
	if !ok {
		if p.FallbackSecret != "" && crypto.ConstantTimeEquals(keyString, p.FallbackSecret) {
			return Redemption{Source: SourceSharedSecret}, nil
		}
		return Redemption{}, newError(CodeInvalidSecretKey, "invalid secret key, registration with elevated role denied")
	}
	if key.ExpiresAt != nil && p.now().After(*key.ExpiresAt) {
		return Redemption{}, newError(CodeSecretKeyExpired, "secret key has expired, please request a new key")
	}

	claimed, err := p.Keys.ClaimKey(ctx, key.ID, newAccountID, p.now())
	if err != nil {
		return Redemption{}, err
	}
	if !claimed {
		return Redemption{}, newError(CodeInvalidSecretKey, "secret key has already been used")
	}
	return Redemption{Source: SourceIssuedKey, Classroom: key.Classroom, Key: &key}, nil
}

// Deactivate revokes a key. Only the original issuer may do it.
func (p *KeyProtocol) Deactivate(ctx context.Context, caller model.Account, keyID string) error {
	key, ok, err := p.Keys.KeyByID(ctx, keyID)
	if err != nil {
		return err
	}
	if !ok {
		return newError(CodeInvalidSecretKey, "secret key not found")
	}
	if key.GeneratedBy != caller.ID {
		return newError(CodeInsufficientRank, "only the issuing account may deactivate this key")
	}
	return p.Keys.DeactivateKey(ctx, keyID)
}
