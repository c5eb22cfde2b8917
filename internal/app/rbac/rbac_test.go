package rbac

import (
	"testing"

	"github.com/skymaintain/service-layer/internal/errors"
)

func TestPriorityOrdering(t *testing.T) {
	if !(Priority(RoleViewer) < Priority(RoleMaintenanceEngineer)) {
		t.Fatalf("viewer must rank below maintenance engineer")
	}
	if !(Priority(RoleMaintenanceEngineer) < Priority(RoleFleetManager)) {
		t.Fatalf("maintenance engineer must rank below fleet manager")
	}
	if Priority(RoleFleetManager) != Priority(RoleComplianceOfficer) {
		t.Fatalf("fleet manager and compliance officer share a tier")
	}
	if !(Priority(RoleComplianceOfficer) < Priority(RoleAdmin)) {
		t.Fatalf("admin must rank highest")
	}
	if Priority("Unknown") != 0 {
		t.Fatalf("unknown roles must rank below viewer")
	}
}

func TestRequire(t *testing.T) {
	engineer := Actor{UserID: "u", Role: RoleMaintenanceEngineer, OrgID: "org-1"}
	if err := Require(engineer, RoleMaintenanceEngineer); err != nil {
		t.Fatalf("equal tier must pass: %v", err)
	}
	if err := Require(engineer, RoleViewer); err != nil {
		t.Fatalf("higher tier must pass: %v", err)
	}

	err := Require(engineer, RoleFleetManager)
	if !errors.Is(err, errors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if err := Require(Anonymous(), RoleMaintenanceEngineer); !errors.Is(err, errors.CodeForbidden) {
		t.Fatalf("anonymous must be rejected, got %v", err)
	}
}
