package rbac

import "testing"

func TestVisibilityScopeSuperAdmin(t *testing.T) {
	scope := VisibilityScope(account("s", RoleSuperAdmin, "North", "Sales"))
	if !scope.All {
		t.Fatalf("expected super_admin to see everything")
	}
}

func TestVisibilityScopeAdminClassroom(t *testing.T) {
	scope := VisibilityScope(account("a", RoleAdmin, "North", ""))
	if scope.All || scope.Classroom != "North" || scope.Department != "" {
		t.Fatalf("expected classroom-only scope, got %+v", scope)
	}
}

func TestVisibilityScopeAdminWithoutClassroom(t *testing.T) {
	// Missing scope data degrades to "see all", not "see none".
	scope := VisibilityScope(account("a", RoleAdmin, "", ""))
	if !scope.All {
		t.Fatalf("expected admin without classroom to see all, got %+v", scope)
	}
}

func TestVisibilityScopeManagerBothDimensions(t *testing.T) {
	scope := VisibilityScope(account("m", RoleManager, "North", "Sales"))
	if scope.All || scope.Classroom != "North" || scope.Department != "Sales" {
		t.Fatalf("expected classroom+department scope, got %+v", scope)
	}
}

func TestVisibilityScopeManagerDepartmentOnly(t *testing.T) {
	scope := VisibilityScope(account("m", RoleManager, "", "Sales"))
	if scope.All || scope.Classroom != "" || scope.Department != "Sales" {
		t.Fatalf("expected department-only scope, got %+v", scope)
	}
}

func TestVisibilityScopeManagerUnscoped(t *testing.T) {
	// Documented degenerate behavior: a manager with neither classroom nor
	// department sees all records.
	scope := VisibilityScope(account("m", RoleManager, "", ""))
	if !scope.All {
		t.Fatalf("expected unscoped manager to see all, got %+v", scope)
	}
}

func TestVisibilityScopeHR(t *testing.T) {
	scope := VisibilityScope(account("h", RoleHR, "East", ""))
	if scope.All || scope.Classroom != "East" {
		t.Fatalf("expected hr classroom scope, got %+v", scope)
	}
	if !VisibilityScope(account("h", RoleHR, "", "")).All {
		t.Fatalf("expected hr without classroom to see all")
	}
}

func TestScopeMatches(t *testing.T) {
	scope := Scope{Classroom: "North", Department: "Sales"}
	if !scope.Matches(account("u", RoleEmployee, "North", "Sales")) {
		t.Fatalf("expected match on both dimensions")
	}
	if scope.Matches(account("u", RoleEmployee, "South", "Sales")) {
		t.Fatalf("expected classroom mismatch to fail")
	}
	if scope.Matches(account("u", RoleEmployee, "North", "Support")) {
		t.Fatalf("expected department mismatch to fail")
	}
	// Classroom labels are case-sensitive.
	if scope.Matches(account("u", RoleEmployee, "north", "Sales")) {
		t.Fatalf("expected case-sensitive classroom comparison")
	}
	if !(Scope{All: true}).Matches(account("u", RoleEmployee, "Anywhere", "")) {
		t.Fatalf("expected unrestricted scope to match everyone")
	}
}

func TestCanViewAccount(t *testing.T) {
	target := account("t", RoleEmployee, "South", "")

	if err := CanViewAccount(account("t", RoleEmployee, "", ""), target); err != nil {
		t.Fatalf("expected self view to pass: %v", err)
	}
	if err := CanViewAccount(account("s", RoleSuperAdmin, "", ""), target); err != nil {
		t.Fatalf("expected super_admin view to pass: %v", err)
	}
	if err := CanViewAccount(account("e", RoleEmployee, "South", ""), target); CodeOf(err) != CodeInsufficientRole {
		t.Fatalf("expected employee viewing others to fail, got %v", err)
	}
	if err := CanViewAccount(account("a", RoleAdmin, "North", ""), target); CodeOf(err) != CodeClassroomMismatch {
		t.Fatalf("expected admin classroom mismatch, got %v", err)
	}
	if err := CanViewAccount(account("h", RoleHR, "South", ""), target); err != nil {
		t.Fatalf("expected hr same classroom to pass: %v", err)
	}
	// Managers are not classroom-pinned on single-target reads.
	if err := CanViewAccount(account("m", RoleManager, "North", "Sales"), target); err != nil {
		t.Fatalf("expected manager view to pass: %v", err)
	}
}
