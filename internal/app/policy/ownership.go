package policy

import (
	"github.com/skymaintain/service-layer/internal/app/domain/ingestion"
)

// ValidateOwnership checks a DataOwnership candidate and returns the ordered
// list of human-readable issues. An empty list means the metadata is valid.
// Pure function, no side effects.
func ValidateOwnership(o ingestion.DataOwnership) []string {
	var issues []string
	if o.Owner == "" {
		issues = append(issues, "owner is required")
	}
	if o.Steward == "" {
		issues = append(issues, "steward is required")
	}
	if o.LineageSource == "" {
		issues = append(issues, "lineageSource is required")
	}
	if o.RetentionDays <= 0 {
		issues = append(issues, "retentionDays must be positive")
	}
	return issues
}

// DefaultRetention resolves the retention period for governance metadata that
// arrives without an explicit one, based on its classification.
func DefaultRetention(c ingestion.Classification) (int, bool) {
	days, ok := ingestion.DefaultRetentionDays[c]
	return days, ok
}
