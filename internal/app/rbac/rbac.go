// Package rbac provides role-priority authorization for the service layer.
// The core receives an already-authenticated actor; session issuance and token
// validation live at the transport boundary.
package rbac

import (
	"github.com/skymaintain/service-layer/internal/errors"
)

// Role names, ordered by priority.
const (
	RoleViewer              = "Viewer"
	RoleMaintenanceEngineer = "Maintenance Engineer"
	RoleFleetManager        = "Fleet Manager"
	RoleComplianceOfficer   = "Compliance Officer"
	RoleAdmin               = "Admin"
)

var rolePriority = map[string]int{
	RoleAdmin:               4,
	RoleComplianceOfficer:   3,
	RoleFleetManager:        3,
	RoleMaintenanceEngineer: 2,
	RoleViewer:              1,
}

// Actor is the authenticated identity attached to a request. A request with
// no resolvable identity gets the lowest tier.
type Actor struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	OrgID  string `json:"orgId,omitempty"`
}

// Anonymous is the actor used when no identity can be resolved.
func Anonymous() Actor {
	return Actor{UserID: "anonymous", Role: RoleViewer}
}

// Priority returns the numeric priority for a role name; unknown roles rank
// below Viewer.
func Priority(role string) int {
	return rolePriority[role]
}

// Require returns an authorization error unless the actor's role priority
// meets the minimum.
func Require(actor Actor, minimumRole string) error {
	if Priority(actor.Role) < Priority(minimumRole) {
		return errors.Forbidden("insufficient role for this action")
	}
	return nil
}
