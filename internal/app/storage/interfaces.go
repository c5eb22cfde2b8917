// Package storage declares the persistence interfaces consumed by the
// application services. Every read and write is scoped by an organization
// identifier; no store may return another org's rows. The ingestion record,
// decision event, and audit stores are append-only by contract: no update or
// delete operations exist.
package storage

import (
	"context"
	"time"

	"github.com/skymaintain/service-layer/internal/app/domain/audit"
	"github.com/skymaintain/service-layer/internal/app/domain/decision"
	"github.com/skymaintain/service-layer/internal/app/domain/ingestion"
	"github.com/skymaintain/service-layer/internal/app/domain/org"
)

// IngestionStore persists raw maintenance records and batch log entries.
type IngestionStore interface {
	AppendRecord(ctx context.Context, rec ingestion.Record) (ingestion.Record, error)
	ListRecords(ctx context.Context, orgID string) ([]ingestion.Record, error)

	AppendLogEntry(ctx context.Context, entry ingestion.LogEntry) (ingestion.LogEntry, error)
	ListLogEntries(ctx context.Context, orgID string) ([]ingestion.LogEntry, error)
}

// DecisionEventStore persists immutable decision events.
type DecisionEventStore interface {
	AppendEvent(ctx context.Context, ev decision.Event) (decision.Event, error)
	ListEvents(ctx context.Context, orgID string) ([]decision.Event, error)
}

// AuditStore persists append-only audit events.
type AuditStore interface {
	AppendAudit(ctx context.Context, ev audit.Event) error
}

// APIKeyStore persists ingestion API keys. Key material is stored hashed.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key ingestion.APIKey) (ingestion.APIKey, error)
	GetAPIKeyByHash(ctx context.Context, keyHash string) (ingestion.APIKey, error)
	ListAPIKeys(ctx context.Context, orgID string) ([]ingestion.APIKey, error)
	RevokeAPIKey(ctx context.Context, orgID, id string) error
	TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error
}

// OrgStore persists tenant organizations and their policy flags.
type OrgStore interface {
	UpsertOrganization(ctx context.Context, o org.Organization) (org.Organization, error)
	GetOrganization(ctx context.Context, id string) (org.Organization, error)
}
