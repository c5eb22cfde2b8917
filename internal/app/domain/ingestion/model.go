// Package ingestion defines the raw maintenance-data records accepted at the
// ingestion boundary, together with the governance metadata bound to them.
package ingestion

import "time"

// Source identifies the origin system of an ingested record. The set is
// closed: records claiming any other source are rejected.
type Source string

const (
	SourceFaultCodes         Source = "CMC/CMS Faults"
	SourceACMSOutputs        Source = "ACMS Outputs"
	SourceEFBDiscrepancies   Source = "EFB Discrepancies"
	SourceDeferredDefects    Source = "MEL/Deferred Defect History"
	SourceComponentHistory   Source = "Component Remove/Install History"
	SourceReliabilityContext Source = "Reliability + Environment/Phase Context"
)

// Sources lists every accepted origin system.
func Sources() []Source {
	return []Source{
		SourceFaultCodes,
		SourceACMSOutputs,
		SourceEFBDiscrepancies,
		SourceDeferredDefects,
		SourceComponentHistory,
		SourceReliabilityContext,
	}
}

// Valid reports whether s is one of the accepted sources.
func (s Source) Valid() bool {
	for _, known := range Sources() {
		if s == known {
			return true
		}
	}
	return false
}

// Classification is the sensitivity level of an ingested record.
type Classification string

const (
	ClassificationPublic       Classification = "public"
	ClassificationInternal     Classification = "internal"
	ClassificationConfidential Classification = "confidential"
	ClassificationRestricted   Classification = "restricted"
)

// DefaultRetentionDays maps each classification to the retention applied when
// the upstream pipeline does not set one explicitly.
var DefaultRetentionDays = map[Classification]int{
	ClassificationPublic:       365,
	ClassificationInternal:     730,
	ClassificationConfidential: 1095,
	ClassificationRestricted:   1825,
}

// Valid reports whether c is a known classification.
func (c Classification) Valid() bool {
	_, ok := DefaultRetentionDays[c]
	return ok
}

// DataOwnership is the governance metadata bound to an ingested record:
// accountable people, tenant scope, retention, and lineage.
type DataOwnership struct {
	Owner          string         `json:"owner"`
	Steward        string         `json:"steward"`
	OrgID          string         `json:"orgId,omitempty"`
	RetentionDays  int            `json:"retentionDays"`
	Classification Classification `json:"classification"`
	LineageSource  string         `json:"lineageSource"`
}

// Record is one unit of raw maintenance data. Records are append-only: this
// subsystem never mutates or deletes them, and their payload must never carry
// recommendation or work-order content.
type Record struct {
	ID         string         `json:"id"`
	OrgID      string         `json:"orgId,omitempty"`
	Source     Source         `json:"source"`
	AircraftID string         `json:"aircraftId"`
	TailNumber string         `json:"tailNumber,omitempty"`
	Timestamp  string         `json:"timestamp"`
	Payload    map[string]any `json:"payload"`
	Governance *DataOwnership `json:"governance,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// BatchKind labels how a batch of records entered the system.
type BatchKind string

const (
	BatchCSVImport     BatchKind = "csv_import"
	BatchAPIPush       BatchKind = "api_push"
	BatchConnectorSync BatchKind = "connector_sync"
	BatchManual        BatchKind = "manual"
)

// LogStatus summarises the outcome of a batch ingestion.
type LogStatus string

const (
	LogSuccess LogStatus = "success"
	LogPartial LogStatus = "partial"
	LogFailed  LogStatus = "failed"
)

// RecordError describes one rejected record within a batch.
type RecordError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// LogEntry traces a batch ingestion: how many records arrived, how many were
// accepted, and why the rest were rejected.
type LogEntry struct {
	ID             string        `json:"id"`
	OrgID          string        `json:"orgId,omitempty"`
	Kind           BatchKind     `json:"kind"`
	RecordCount    int           `json:"recordCount"`
	RecordsCreated int           `json:"recordsCreated"`
	RecordsFailed  int           `json:"recordsFailed"`
	Status         LogStatus     `json:"status"`
	Errors         []RecordError `json:"errors,omitempty"`
	APIKeyID       string        `json:"apiKeyId,omitempty"`
	InitiatedBy    string        `json:"initiatedBy,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// APIKey is an org-bound credential for the push ingestion path. Only the
// SHA-256 hash of the key material is ever stored.
type APIKey struct {
	ID             string     `json:"id"`
	OrgID          string     `json:"orgId"`
	Label          string     `json:"label"`
	KeyHash        string     `json:"-"`
	AllowedSources []Source   `json:"allowedSources,omitempty"`
	Active         bool       `json:"active"`
	RevokedAt      *time.Time `json:"revokedAt,omitempty"`
	LastUsedAt     *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// SourceAllowed reports whether the key may submit records for the given
// source. An empty allow list permits every source.
func (k APIKey) SourceAllowed(src Source) bool {
	if len(k.AllowedSources) == 0 {
		return true
	}
	for _, allowed := range k.AllowedSources {
		if allowed == src {
			return true
		}
	}
	return false
}
