package rbac

import (
	"context"
	"testing"
	"time"

	"worktrack/server/internal/model"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestProtocol(keys *memoryKeys, fallback string) *KeyProtocol {
	return &KeyProtocol{
		Keys:           keys,
		FallbackSecret: fallback,
		Now:            func() time.Time { return testNow },
	}
}

func TestIssueRequiresMinRoleHR(t *testing.T) {
	p := newTestProtocol(newMemoryKeys(), "")
	_, err := p.Issue(context.Background(), account("e", RoleEmployee, "", ""), IssueRequest{Role: RoleEmployee})
	if CodeOf(err) != CodeInsufficientRole {
		t.Fatalf("expected insufficient_role, got %v", err)
	}
}

func TestIssueOnlyRolesBelowIssuer(t *testing.T) {
	p := newTestProtocol(newMemoryKeys(), "")
	hr := account("h", RoleHR, "", "")

	for _, role := range []string{RoleHR, RoleManager, RoleAdmin, RoleSuperAdmin} {
		_, err := p.Issue(context.Background(), hr, IssueRequest{Role: role})
		if CodeOf(err) != CodeInsufficientRank {
			t.Fatalf("expected hr issuing %s key to fail with insufficient_rank, got %v", role, err)
		}
	}
	if _, err := p.Issue(context.Background(), hr, IssueRequest{Role: RoleEmployee}); err != nil {
		t.Fatalf("expected hr to issue employee key: %v", err)
	}
}

func TestIssueRejectsUnknownRole(t *testing.T) {
	p := newTestProtocol(newMemoryKeys(), "")
	_, err := p.Issue(context.Background(), account("s", RoleSuperAdmin, "", ""), IssueRequest{Role: "director"})
	if CodeOf(err) != CodeInsufficientRank {
		t.Fatalf("expected unknown role to fail, got %v", err)
	}
}

func TestIssueClassroomInheritance(t *testing.T) {
	p := newTestProtocol(newMemoryKeys(), "")

	// Issuer with a classroom cannot assign an arbitrary one.
	key, err := p.Issue(context.Background(), account("a", RoleAdmin, "North", ""), IssueRequest{Role: RoleEmployee, Classroom: "South"})
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if key.Classroom == nil || *key.Classroom != "North" {
		t.Fatalf("expected issuer classroom North, got %v", key.Classroom)
	}
	if key.GeneratedByRole != RoleAdmin || key.GeneratedByClassroom == nil || *key.GeneratedByClassroom != "North" {
		t.Fatalf("expected issuer snapshot, got %+v", key)
	}

	// Super admin specifies the classroom explicitly.
	key, err = p.Issue(context.Background(), account("s", RoleSuperAdmin, "HQ", ""), IssueRequest{Role: RoleAdmin, Classroom: "West"})
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if key.Classroom == nil || *key.Classroom != "West" {
		t.Fatalf("expected requested classroom West, got %v", key.Classroom)
	}

	// Issuer without a classroom passes the requested one through.
	key, err = p.Issue(context.Background(), account("a2", RoleAdmin, "", ""), IssueRequest{Role: RoleEmployee, Classroom: "East"})
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if key.Classroom == nil || *key.Classroom != "East" {
		t.Fatalf("expected pass-through classroom East, got %v", key.Classroom)
	}
}

func TestIssueExpiry(t *testing.T) {
	p := newTestProtocol(newMemoryKeys(), "")
	admin := account("a", RoleAdmin, "North", "")

	days := 30
	key, err := p.Issue(context.Background(), admin, IssueRequest{Role: RoleEmployee, ExpiresInDays: &days})
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if key.ExpiresAt == nil || !key.ExpiresAt.Equal(testNow.AddDate(0, 0, 30)) {
		t.Fatalf("expected expiry 30 days out, got %v", key.ExpiresAt)
	}

	// Absent day-count means the key never expires.
	key, err = p.Issue(context.Background(), admin, IssueRequest{Role: RoleEmployee})
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if key.ExpiresAt != nil {
		t.Fatalf("expected no expiry, got %v", key.ExpiresAt)
	}
	if !key.IsActive {
		t.Fatalf("expected issued key active")
	}
	if key.Classroom == nil || *key.Classroom != "North" {
		t.Fatalf("expected classroom North, got %v", key.Classroom)
	}
}

func issuedKey(id, keyString, role, classroom string, active bool, expiresAt *time.Time) model.SecretKey {
	key := model.SecretKey{
		ID:              id,
		Key:             keyString,
		Role:            role,
		GeneratedBy:     "issuer",
		GeneratedByRole: RoleAdmin,
		IsActive:        active,
		ExpiresAt:       expiresAt,
		CreatedAt:       testNow,
	}
	if classroom != "" {
		key.Classroom = &classroom
	}
	return key
}

func TestRedeemSuperAdminAlwaysForbidden(t *testing.T) {
	keys := newMemoryKeys(issuedKey("k1", "abc", RoleSuperAdmin, "", true, nil))
	p := newTestProtocol(keys, "abc")
	_, err := p.Redeem(context.Background(), "abc", RoleSuperAdmin, "new-user")
	if CodeOf(err) != CodeElevatedRoleForbidden {
		t.Fatalf("expected elevated_role_forbidden, got %v", err)
	}
}

func TestRedeemEmployeeNeedsNoKey(t *testing.T) {
	p := newTestProtocol(newMemoryKeys(), "")
	redemption, err := p.Redeem(context.Background(), "", RoleEmployee, "new-user")
	if err != nil {
		t.Fatalf("expected employee registration without key: %v", err)
	}
	if redemption.Source != SourceNone {
		t.Fatalf("expected no redemption source, got %s", redemption.Source)
	}
}

func TestRedeemMissingKey(t *testing.T) {
	p := newTestProtocol(newMemoryKeys(), "")
	_, err := p.Redeem(context.Background(), "", RoleHR, "new-user")
	if CodeOf(err) != CodeSecretKeyRequired {
		t.Fatalf("expected secret_key_required, got %v", err)
	}
}

func TestRedeemUnknownKey(t *testing.T) {
	p := newTestProtocol(newMemoryKeys(), "")
	_, err := p.Redeem(context.Background(), "nope", RoleHR, "new-user")
	if CodeOf(err) != CodeInvalidSecretKey {
		t.Fatalf("expected invalid_secret_key, got %v", err)
	}
}

func TestRedeemDeactivatedKey(t *testing.T) {
	keys := newMemoryKeys(issuedKey("k1", "abc", RoleHR, "", false, nil))
	p := newTestProtocol(keys, "")
	_, err := p.Redeem(context.Background(), "abc", RoleHR, "new-user")
	if CodeOf(err) != CodeInvalidSecretKey {
		t.Fatalf("expected invalid_secret_key for deactivated key, got %v", err)
	}
}

func TestRedeemRoleMismatch(t *testing.T) {
	keys := newMemoryKeys(issuedKey("k1", "abc", RoleHR, "", true, nil))
	p := newTestProtocol(keys, "")
	_, err := p.Redeem(context.Background(), "abc", RoleManager, "new-user")
	if CodeOf(err) != CodeInvalidSecretKey {
		t.Fatalf("expected invalid_secret_key for role mismatch, got %v", err)
	}
}

func TestRedeemExpiredKey(t *testing.T) {
	past := testNow.Add(-time.Hour)
	keys := newMemoryKeys(issuedKey("k1", "abc", RoleHR, "", true, &past))
	p := newTestProtocol(keys, "")
	_, err := p.Redeem(context.Background(), "abc", RoleHR, "new-user")
	if CodeOf(err) != CodeSecretKeyExpired {
		t.Fatalf("expected secret_key_expired even though key is active, got %v", err)
	}
}

func TestRedeemClaimsKeyOnce(t *testing.T) {
	keys := newMemoryKeys(issuedKey("k1", "abc", RoleEmployee, "North", true, nil))
	p := newTestProtocol(keys, "")

	redemption, err := p.Redeem(context.Background(), "abc", RoleEmployee, "new-user")
	if err != nil {
		t.Fatalf("redeem error: %v", err)
	}
	if redemption.Source != SourceNone {
		t.Fatalf("expected employee role to skip redemption, got %s", redemption.Source)
	}

	// Elevated role: consumes the key and snapshots the classroom.
	keys = newMemoryKeys(issuedKey("k1", "abc", RoleHR, "North", true, nil))
	p = newTestProtocol(keys, "")
	redemption, err = p.Redeem(context.Background(), "abc", RoleHR, "user-1")
	if err != nil {
		t.Fatalf("redeem error: %v", err)
	}
	if redemption.Source != SourceIssuedKey {
		t.Fatalf("expected issued_key source, got %s", redemption.Source)
	}
	if redemption.Classroom == nil || *redemption.Classroom != "North" {
		t.Fatalf("expected classroom North, got %v", redemption.Classroom)
	}
	stored := keys.keys["k1"]
	if stored.UsedAt == nil || stored.UsedBy == nil || *stored.UsedBy != "user-1" {
		t.Fatalf("expected key claimed for user-1, got %+v", stored)
	}

	// A second redemption of the claimed key loses the compare-and-swap.
	_, err = p.Redeem(context.Background(), "abc", RoleHR, "user-2")
	if CodeOf(err) != CodeInvalidSecretKey {
		t.Fatalf("expected invalid_secret_key for already claimed key, got %v", err)
	}
}

func TestRedeemSharedSecretFallback(t *testing.T) {
	p := newTestProtocol(newMemoryKeys(), "legacy-secret")
	redemption, err := p.Redeem(context.Background(), "legacy-secret", RoleManager, "new-user")
	if err != nil {
		t.Fatalf("redeem error: %v", err)
	}
	if redemption.Source != SourceSharedSecret {
		t.Fatalf("expected shared_secret source, got %s", redemption.Source)
	}
	if redemption.Classroom != nil || redemption.Key != nil {
		t.Fatalf("expected bare shared-secret redemption, got %+v", redemption)
	}
}

func TestRedeemFallbackOnlyWhenNoKeyMatches(t *testing.T) {
	// A matching key record takes priority over the shared secret.
	past := testNow.Add(-time.Hour)
	keys := newMemoryKeys(issuedKey("k1", "legacy-secret", RoleHR, "", true, &past))
	p := newTestProtocol(keys, "legacy-secret")
	_, err := p.Redeem(context.Background(), "legacy-secret", RoleHR, "new-user")
	if CodeOf(err) != CodeSecretKeyExpired {
		t.Fatalf("expected the key record to win over the fallback, got %v", err)
	}
}

func TestDeactivateIssuerOnly(t *testing.T) {
	keys := newMemoryKeys(issuedKey("k1", "abc", RoleHR, "", true, nil))
	p := newTestProtocol(keys, "")

	err := p.Deactivate(context.Background(), account("other", RoleSuperAdmin, "", ""), "k1")
	if CodeOf(err) != CodeInsufficientRank {
		t.Fatalf("expected non-issuer deactivation to fail, got %v", err)
	}

	if err := p.Deactivate(context.Background(), account("issuer", RoleAdmin, "", ""), "k1"); err != nil {
		t.Fatalf("expected issuer deactivation to pass: %v", err)
	}
	if keys.keys["k1"].IsActive {
		t.Fatalf("expected key deactivated")
	}

	err = p.Deactivate(context.Background(), account("issuer", RoleAdmin, "", ""), "ghost")
	if CodeOf(err) != CodeInvalidSecretKey {
		t.Fatalf("expected invalid_secret_key for unknown id, got %v", err)
	}
}
