// Package entitlements resolves the feature set an organization's
// subscription tier grants. The core services never consult entitlements
// directly; deployments that gate ingestion behind a plan tier do so at the
// HTTP layer.
package entitlements

import (
	"context"

	"github.com/skymaintain/service-layer/internal/app/domain/org"
	"github.com/skymaintain/service-layer/internal/app/storage"
	"github.com/skymaintain/service-layer/pkg/logger"
)

// Limits caps resource usage per tier; nil means unlimited.
type Limits struct {
	MaxAircraft    *int `json:"maxAircraft"`
	MaxStorageGB   *int `json:"maxStorageGb"`
	MaxTeamMembers *int `json:"maxTeamMembers"`
}

// Entitlements is the resolved feature set for one organization.
type Entitlements struct {
	Tier           org.Tier        `json:"tier"`
	Features       map[string]bool `json:"features"`
	APIAccessLevel string          `json:"apiAccessLevel"`
	Limits         Limits          `json:"limits"`
}

// coreFeatures are enabled on every plan.
var coreFeatures = []string{
	"fleet_management",
	"work_orders_job_cards",
	"parts_inventory",
	"maintenance_calendar",
	"basic_maintenance_tracking",
	"mobile_app_access",
	"standard_compliance_reports",
}

// professionalFeatures are enabled on professional and enterprise plans.
var professionalFeatures = []string{
	"ai_insights_reports",
	"regulatory_compliance",
	"api_ingestion_contracts",
	"custom_compliance_reports",
	"advanced_ai_insights",
	"realtime_iot_integration",
	"multi_location_support",
	"priority_support",
}

// enterpriseFeatures are enterprise only.
var enterpriseFeatures = []string{
	"predictive_alerts",
	"dedicated_support",
	"dedicated_support_24_7",
	"custom_integrations",
	"sla_guarantee",
}

// Service resolves entitlements through the organization store. Unknown
// organizations fall back to the starter tier.
type Service struct {
	orgs storage.OrgStore
	log  *logger.Logger
}

// NewService wires the entitlement resolver.
func NewService(orgs storage.OrgStore, log *logger.Logger) *Service {
	return &Service{orgs: orgs, log: log}
}

// Resolve returns the full entitlement set for an organization.
func (s *Service) Resolve(ctx context.Context, orgID string) Entitlements {
	tier := org.TierStarter
	if s.orgs != nil && orgID != "" {
		if o, err := s.orgs.GetOrganization(ctx, orgID); err == nil && o.Tier.Valid() {
			tier = o.Tier
		}
	}
	return ForTier(tier)
}

// IsFeatureEnabled reports whether the organization's tier includes a feature.
// Unknown feature keys are disabled.
func (s *Service) IsFeatureEnabled(ctx context.Context, orgID, featureKey string) bool {
	return s.Resolve(ctx, orgID).Features[featureKey]
}

// ForTier returns the static entitlement table for a tier.
func ForTier(tier org.Tier) Entitlements {
	features := make(map[string]bool)
	enable := func(keys []string, on bool) {
		for _, key := range keys {
			features[key] = on
		}
	}

	enable(coreFeatures, true)
	enable(professionalFeatures, tier == org.TierProfessional || tier == org.TierEnterprise)
	enable(enterpriseFeatures, tier == org.TierEnterprise)

	switch tier {
	case org.TierEnterprise:
		return Entitlements{
			Tier:           tier,
			Features:       features,
			APIAccessLevel: "full",
			Limits:         Limits{},
		}
	case org.TierProfessional:
		return Entitlements{
			Tier:           tier,
			Features:       features,
			APIAccessLevel: "basic",
			Limits:         Limits{MaxAircraft: intPtr(25), MaxStorageGB: intPtr(50), MaxTeamMembers: intPtr(25)},
		}
	default:
		return Entitlements{
			Tier:           org.TierStarter,
			Features:       features,
			APIAccessLevel: "none",
			Limits:         Limits{MaxAircraft: intPtr(5), MaxStorageGB: intPtr(1), MaxTeamMembers: intPtr(5)},
		}
	}
}

func intPtr(v int) *int { return &v }
