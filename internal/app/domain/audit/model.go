// Package audit defines the append-only audit record written for every
// state-changing action across the service layer.
package audit

import "time"

// Action labels the operation an audit event traces.
const (
	ActionIngest         = "INGEST"
	ActionIngestBatch    = "INGEST_BATCH"
	ActionDecisionEvent  = "DECISION_EVENT"
	ActionLogin          = "LOGIN"
	ActionSettingsChange = "SETTINGS_CHANGE"
	ActionAPIKeyCreated  = "API_KEY_CREATED"
	ActionAPIKeyRevoked  = "API_KEY_REVOKED"
)

// Event is one append-only audit record. Writes are best-effort: a failed
// audit write never fails the operation that triggered it.
type Event struct {
	ID           string         `json:"id"`
	OccurredAt   time.Time      `json:"occurredAt"`
	ActorID      string         `json:"actorId"`
	ActorRole    string         `json:"actorRole"`
	OrgID        string         `json:"orgId,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
