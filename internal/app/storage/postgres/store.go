// Package postgres implements the storage interfaces backed by PostgreSQL.
// Rows are decoded through explicit row types at the persistence boundary so
// the services never see loosely typed query results.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/skymaintain/service-layer/internal/app/domain/audit"
	"github.com/skymaintain/service-layer/internal/app/domain/decision"
	"github.com/skymaintain/service-layer/internal/app/domain/ingestion"
	"github.com/skymaintain/service-layer/internal/app/domain/org"
	"github.com/skymaintain/service-layer/internal/app/storage"
)

// Store implements the storage interfaces over a PostgreSQL handle.
type Store struct {
	db *sqlx.DB
}

var _ storage.IngestionStore = (*Store)(nil)
var _ storage.DecisionEventStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)
var _ storage.APIKeyStore = (*Store)(nil)
var _ storage.OrgStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// --- IngestionStore ----------------------------------------------------------

type recordRow struct {
	ID         string         `db:"id"`
	OrgID      string         `db:"org_id"`
	Source     string         `db:"source"`
	AircraftID string         `db:"aircraft_id"`
	TailNumber sql.NullString `db:"tail_number"`
	Timestamp  string         `db:"event_timestamp"`
	Payload    []byte         `db:"payload"`
	Governance []byte         `db:"governance"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r recordRow) toDomain() (ingestion.Record, error) {
	rec := ingestion.Record{
		ID:         r.ID,
		OrgID:      r.OrgID,
		Source:     ingestion.Source(r.Source),
		AircraftID: r.AircraftID,
		TailNumber: r.TailNumber.String,
		Timestamp:  r.Timestamp,
		CreatedAt:  r.CreatedAt,
	}
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &rec.Payload); err != nil {
			return ingestion.Record{}, err
		}
	}
	if len(r.Governance) > 0 {
		var gov ingestion.DataOwnership
		if err := json.Unmarshal(r.Governance, &gov); err != nil {
			return ingestion.Record{}, err
		}
		rec.Governance = &gov
	}
	return rec, nil
}

func (s *Store) AppendRecord(ctx context.Context, rec ingestion.Record) (ingestion.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	payloadJSON, err := json.Marshal(rec.Payload)
	if err != nil {
		return ingestion.Record{}, err
	}
	var governanceJSON []byte
	if rec.Governance != nil {
		if governanceJSON, err = json.Marshal(rec.Governance); err != nil {
			return ingestion.Record{}, err
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ingestion_records (id, org_id, source, aircraft_id, tail_number, event_timestamp, payload, governance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.OrgID, string(rec.Source), rec.AircraftID, nullString(rec.TailNumber), rec.Timestamp, payloadJSON, governanceJSON, rec.CreatedAt)
	if err != nil {
		return ingestion.Record{}, err
	}
	return rec, nil
}

func (s *Store) ListRecords(ctx context.Context, orgID string) ([]ingestion.Record, error) {
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, org_id, source, aircraft_id, tail_number, event_timestamp, payload, governance, created_at
		FROM ingestion_records
		WHERE org_id = $1
		ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, err
	}

	result := make([]ingestion.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

type logRow struct {
	ID             string         `db:"id"`
	OrgID          string         `db:"org_id"`
	Kind           string         `db:"kind"`
	RecordCount    int            `db:"record_count"`
	RecordsCreated int            `db:"records_created"`
	RecordsFailed  int            `db:"records_failed"`
	Status         string         `db:"status"`
	ErrorDetails   []byte         `db:"error_details"`
	APIKeyID       sql.NullString `db:"api_key_id"`
	InitiatedBy    sql.NullString `db:"initiated_by"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r logRow) toDomain() (ingestion.LogEntry, error) {
	entry := ingestion.LogEntry{
		ID:             r.ID,
		OrgID:          r.OrgID,
		Kind:           ingestion.BatchKind(r.Kind),
		RecordCount:    r.RecordCount,
		RecordsCreated: r.RecordsCreated,
		RecordsFailed:  r.RecordsFailed,
		Status:         ingestion.LogStatus(r.Status),
		APIKeyID:       r.APIKeyID.String,
		InitiatedBy:    r.InitiatedBy.String,
		CreatedAt:      r.CreatedAt,
	}
	if len(r.ErrorDetails) > 0 {
		if err := json.Unmarshal(r.ErrorDetails, &entry.Errors); err != nil {
			return ingestion.LogEntry{}, err
		}
	}
	return entry, nil
}

func (s *Store) AppendLogEntry(ctx context.Context, entry ingestion.LogEntry) (ingestion.LogEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var detailsJSON []byte
	if len(entry.Errors) > 0 {
		var err error
		if detailsJSON, err = json.Marshal(entry.Errors); err != nil {
			return ingestion.LogEntry{}, err
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_log (id, org_id, kind, record_count, records_created, records_failed, status, error_details, api_key_id, initiated_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.ID, entry.OrgID, string(entry.Kind), entry.RecordCount, entry.RecordsCreated, entry.RecordsFailed,
		string(entry.Status), detailsJSON, nullString(entry.APIKeyID), nullString(entry.InitiatedBy), entry.CreatedAt)
	if err != nil {
		return ingestion.LogEntry{}, err
	}
	return entry, nil
}

func (s *Store) ListLogEntries(ctx context.Context, orgID string) ([]ingestion.LogEntry, error) {
	var rows []logRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, org_id, kind, record_count, records_created, records_failed, status, error_details, api_key_id, initiated_by, created_at
		FROM ingestion_log
		WHERE org_id = $1
		ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, err
	}

	result := make([]ingestion.LogEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, nil
}

// --- DecisionEventStore ------------------------------------------------------

type eventRow struct {
	ID                   string         `db:"id"`
	OrgID                string         `db:"org_id"`
	CreatedAt            time.Time      `db:"created_at"`
	Advisory             []byte         `db:"advisory"`
	AuthoritativeSources []byte         `db:"authoritative_sources"`
	AcknowledgedBy       string         `db:"acknowledged_by"`
	AcknowledgedAt       string         `db:"acknowledged_at"`
	Disposition          string         `db:"disposition"`
	OverrideRationale    sql.NullString `db:"override_rationale"`
	UserAction           string         `db:"user_action"`
	CanCreateWorkorder   bool           `db:"can_create_workorder"`
	RuleDecision         []byte         `db:"rule_decision"`
	RuleInputs           []byte         `db:"rule_inputs"`
	ActorID              sql.NullString `db:"actor_id"`
	ActorRole            sql.NullString `db:"actor_role"`
}

func (r eventRow) toDomain() (decision.Event, error) {
	ev := decision.Event{
		ID:        r.ID,
		OrgID:     r.OrgID,
		CreatedAt: r.CreatedAt,
		Advisory:  append(json.RawMessage(nil), r.Advisory...),
		Acknowledgement: decision.Acknowledgement{
			AcknowledgedBy: r.AcknowledgedBy,
			AcknowledgedAt: r.AcknowledgedAt,
		},
		Disposition:        decision.Disposition(r.Disposition),
		OverrideRationale:  r.OverrideRationale.String,
		UserAction:         decision.UserAction(r.UserAction),
		CanCreateWorkorder: r.CanCreateWorkorder,
		ActorID:            r.ActorID.String,
		ActorRole:          r.ActorRole.String,
	}
	if len(r.AuthoritativeSources) > 0 {
		if err := json.Unmarshal(r.AuthoritativeSources, &ev.AuthoritativeSources); err != nil {
			return decision.Event{}, err
		}
	}
	if len(r.RuleDecision) > 0 {
		if err := json.Unmarshal(r.RuleDecision, &ev.RuleDecision); err != nil {
			return decision.Event{}, err
		}
	}
	if len(r.RuleInputs) > 0 {
		if err := json.Unmarshal(r.RuleInputs, &ev.RuleInputs); err != nil {
			return decision.Event{}, err
		}
	}
	return ev, nil
}

func (s *Store) AppendEvent(ctx context.Context, ev decision.Event) (decision.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	sourcesJSON, err := json.Marshal(ev.AuthoritativeSources)
	if err != nil {
		return decision.Event{}, err
	}
	decisionJSON, err := json.Marshal(ev.RuleDecision)
	if err != nil {
		return decision.Event{}, err
	}
	inputsJSON, err := json.Marshal(ev.RuleInputs)
	if err != nil {
		return decision.Event{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decision_events (id, org_id, created_at, advisory, authoritative_sources, acknowledged_by, acknowledged_at,
			disposition, override_rationale, user_action, can_create_workorder, rule_decision, rule_inputs, actor_id, actor_role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, ev.ID, ev.OrgID, ev.CreatedAt, []byte(ev.Advisory), sourcesJSON,
		ev.Acknowledgement.AcknowledgedBy, ev.Acknowledgement.AcknowledgedAt,
		string(ev.Disposition), nullString(ev.OverrideRationale), string(ev.UserAction),
		ev.CanCreateWorkorder, decisionJSON, inputsJSON, nullString(ev.ActorID), nullString(ev.ActorRole))
	if err != nil {
		return decision.Event{}, err
	}
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context, orgID string) ([]decision.Event, error) {
	var rows []eventRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, org_id, created_at, advisory, authoritative_sources, acknowledged_by, acknowledged_at,
			disposition, override_rationale, user_action, can_create_workorder, rule_decision, rule_inputs, actor_id, actor_role
		FROM decision_events
		WHERE org_id = $1
		ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, err
	}

	result := make([]decision.Event, 0, len(rows))
	for _, row := range rows {
		ev, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, nil
}

// --- AuditStore --------------------------------------------------------------

func (s *Store) AppendAudit(ctx context.Context, ev audit.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	var metadataJSON []byte
	if len(ev.Metadata) > 0 {
		var err error
		if metadataJSON, err = json.Marshal(ev.Metadata); err != nil {
			return err
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, occurred_at, actor_id, actor_role, org_id, action, resource_type, resource_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ev.ID, ev.OccurredAt, ev.ActorID, ev.ActorRole, nullString(ev.OrgID), ev.Action, ev.ResourceType, nullString(ev.ResourceID), metadataJSON)
	return err
}

// --- APIKeyStore -------------------------------------------------------------

type apiKeyRow struct {
	ID             string       `db:"id"`
	OrgID          string       `db:"org_id"`
	Label          string       `db:"label"`
	KeyHash        string       `db:"key_hash"`
	AllowedSources []byte       `db:"allowed_sources"`
	IsActive       bool         `db:"is_active"`
	RevokedAt      sql.NullTime `db:"revoked_at"`
	LastUsedAt     sql.NullTime `db:"last_used_at"`
	CreatedAt      time.Time    `db:"created_at"`
}

func (r apiKeyRow) toDomain() (ingestion.APIKey, error) {
	key := ingestion.APIKey{
		ID:        r.ID,
		OrgID:     r.OrgID,
		Label:     r.Label,
		KeyHash:   r.KeyHash,
		Active:    r.IsActive,
		CreatedAt: r.CreatedAt,
	}
	if r.RevokedAt.Valid {
		t := r.RevokedAt.Time
		key.RevokedAt = &t
	}
	if r.LastUsedAt.Valid {
		t := r.LastUsedAt.Time
		key.LastUsedAt = &t
	}
	if len(r.AllowedSources) > 0 {
		if err := json.Unmarshal(r.AllowedSources, &key.AllowedSources); err != nil {
			return ingestion.APIKey{}, err
		}
	}
	return key, nil
}

func (s *Store) CreateAPIKey(ctx context.Context, key ingestion.APIKey) (ingestion.APIKey, error) {
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}

	var sourcesJSON []byte
	if len(key.AllowedSources) > 0 {
		var err error
		if sourcesJSON, err = json.Marshal(key.AllowedSources); err != nil {
			return ingestion.APIKey{}, err
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_api_keys (id, org_id, label, key_hash, allowed_sources, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, key.ID, key.OrgID, key.Label, key.KeyHash, sourcesJSON, key.Active, key.CreatedAt)
	if err != nil {
		return ingestion.APIKey{}, err
	}
	return key, nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (ingestion.APIKey, error) {
	var row apiKeyRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, org_id, label, key_hash, allowed_sources, is_active, revoked_at, last_used_at, created_at
		FROM ingestion_api_keys
		WHERE key_hash = $1
	`, keyHash)
	if err != nil {
		return ingestion.APIKey{}, err
	}
	return row.toDomain()
}

func (s *Store) ListAPIKeys(ctx context.Context, orgID string) ([]ingestion.APIKey, error) {
	var rows []apiKeyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, org_id, label, key_hash, allowed_sources, is_active, revoked_at, last_used_at, created_at
		FROM ingestion_api_keys
		WHERE org_id = $1
		ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, err
	}

	result := make([]ingestion.APIKey, 0, len(rows))
	for _, row := range rows {
		key, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, key)
	}
	return result, nil
}

func (s *Store) RevokeAPIKey(ctx context.Context, orgID, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE ingestion_api_keys
		SET is_active = FALSE, revoked_at = $3
		WHERE id = $1 AND org_id = $2
	`, id, orgID, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE ingestion_api_keys SET last_used_at = $2 WHERE id = $1
	`, id, usedAt)
	return err
}

// --- OrgStore ----------------------------------------------------------------

type orgRow struct {
	ID                string    `db:"id"`
	Name              string    `db:"name"`
	Tier              string    `db:"tier"`
	RequireGovernance bool      `db:"require_governance"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (s *Store) UpsertOrganization(ctx context.Context, o org.Organization) (org.Organization, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Tier == "" {
		o.Tier = org.TierStarter
	}
	now := time.Now().UTC()
	o.UpdatedAt = now
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, tier, require_governance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, tier = EXCLUDED.tier,
			require_governance = EXCLUDED.require_governance, updated_at = EXCLUDED.updated_at
	`, o.ID, o.Name, string(o.Tier), o.RequireGovernance, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return org.Organization{}, err
	}
	return o, nil
}

func (s *Store) GetOrganization(ctx context.Context, id string) (org.Organization, error) {
	var row orgRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, tier, require_governance, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`, id)
	if err != nil {
		return org.Organization{}, err
	}
	return org.Organization{
		ID:                row.ID,
		Name:              row.Name,
		Tier:              org.Tier(row.Tier),
		RequireGovernance: row.RequireGovernance,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
