// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development; the durable store is authoritative in
// production.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/skymaintain/service-layer/internal/app/domain/audit"
	"github.com/skymaintain/service-layer/internal/app/domain/decision"
	"github.com/skymaintain/service-layer/internal/app/domain/ingestion"
	"github.com/skymaintain/service-layer/internal/app/domain/org"
	"github.com/skymaintain/service-layer/internal/app/storage"
)

// Store is an in-memory implementation of every storage interface.
type Store struct {
	mu         sync.RWMutex
	nextID     int64
	records    []ingestion.Record
	logEntries []ingestion.LogEntry
	events     []decision.Event
	auditLog   []audit.Event
	apiKeys    map[string]ingestion.APIKey
	keysByHash map[string]string
	orgs       map[string]org.Organization
}

var _ storage.IngestionStore = (*Store)(nil)
var _ storage.DecisionEventStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)
var _ storage.APIKeyStore = (*Store)(nil)
var _ storage.OrgStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:     1,
		apiKeys:    make(map[string]ingestion.APIKey),
		keysByHash: make(map[string]string),
		orgs:       make(map[string]org.Organization),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// IngestionStore implementation ----------------------------------------------

func (s *Store) AppendRecord(_ context.Context, rec ingestion.Record) (ingestion.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.nextIDLocked()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Payload = clonePayload(rec.Payload)
	rec.Governance = cloneGovernance(rec.Governance)

	s.records = append(s.records, rec)
	return cloneRecord(rec), nil
}

func (s *Store) ListRecords(_ context.Context, orgID string) ([]ingestion.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ingestion.Record, 0)
	for _, rec := range s.records {
		if rec.OrgID == orgID {
			result = append(result, cloneRecord(rec))
		}
	}
	return result, nil
}

func (s *Store) AppendLogEntry(_ context.Context, entry ingestion.LogEntry) (ingestion.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = s.nextIDLocked()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Errors = append([]ingestion.RecordError(nil), entry.Errors...)

	s.logEntries = append(s.logEntries, entry)
	return entry, nil
}

func (s *Store) ListLogEntries(_ context.Context, orgID string) ([]ingestion.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ingestion.LogEntry, 0)
	for _, entry := range s.logEntries {
		if entry.OrgID == orgID {
			entry.Errors = append([]ingestion.RecordError(nil), entry.Errors...)
			result = append(result, entry)
		}
	}
	return result, nil
}

// DecisionEventStore implementation ------------------------------------------

func (s *Store) AppendEvent(_ context.Context, ev decision.Event) (decision.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = s.nextIDLocked()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	ev.Advisory = append(json.RawMessage(nil), ev.Advisory...)
	ev.AuthoritativeSources = append([]string(nil), ev.AuthoritativeSources...)
	ev.RuleDecision.Rationale = append([]string(nil), ev.RuleDecision.Rationale...)

	s.events = append(s.events, ev)
	return cloneEvent(ev), nil
}

func (s *Store) ListEvents(_ context.Context, orgID string) ([]decision.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]decision.Event, 0)
	for _, ev := range s.events {
		if ev.OrgID == orgID {
			result = append(result, cloneEvent(ev))
		}
	}
	return result, nil
}

// AuditStore implementation ----------------------------------------------------

func (s *Store) AppendAudit(_ context.Context, ev audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = s.nextIDLocked()
	}
	ev.Metadata = cloneMetadata(ev.Metadata)
	s.auditLog = append(s.auditLog, ev)
	return nil
}

// AuditEvents returns every audit row for an org, oldest first. It exists for
// tests and the in-memory read path; the durable store is queried directly in
// production deployments.
func (s *Store) AuditEvents(orgID string) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]audit.Event, 0)
	for _, ev := range s.auditLog {
		if ev.OrgID == orgID {
			ev.Metadata = cloneMetadata(ev.Metadata)
			result = append(result, ev)
		}
	}
	return result
}

// APIKeyStore implementation ---------------------------------------------------

func (s *Store) CreateAPIKey(_ context.Context, key ingestion.APIKey) (ingestion.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key.ID == "" {
		key.ID = s.nextIDLocked()
	} else if _, exists := s.apiKeys[key.ID]; exists {
		return ingestion.APIKey{}, fmt.Errorf("api key %s already exists", key.ID)
	}
	if _, exists := s.keysByHash[key.KeyHash]; exists {
		return ingestion.APIKey{}, fmt.Errorf("api key hash collision")
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	key.AllowedSources = append([]ingestion.Source(nil), key.AllowedSources...)

	s.apiKeys[key.ID] = key
	s.keysByHash[key.KeyHash] = key.ID
	return cloneKey(key), nil
}

func (s *Store) GetAPIKeyByHash(_ context.Context, keyHash string) (ingestion.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keysByHash[keyHash]
	if !ok {
		return ingestion.APIKey{}, fmt.Errorf("api key not found")
	}
	return cloneKey(s.apiKeys[id]), nil
}

func (s *Store) ListAPIKeys(_ context.Context, orgID string) ([]ingestion.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ingestion.APIKey, 0)
	for _, key := range s.apiKeys {
		if key.OrgID == orgID {
			result = append(result, cloneKey(key))
		}
	}
	return result, nil
}

func (s *Store) RevokeAPIKey(_ context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeys[id]
	if !ok || key.OrgID != orgID {
		return fmt.Errorf("api key %s not found", id)
	}
	now := time.Now().UTC()
	key.Active = false
	key.RevokedAt = &now
	s.apiKeys[id] = key
	return nil
}

func (s *Store) TouchAPIKey(_ context.Context, id string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeys[id]
	if !ok {
		return fmt.Errorf("api key %s not found", id)
	}
	key.LastUsedAt = &usedAt
	s.apiKeys[id] = key
	return nil
}

// OrgStore implementation ------------------------------------------------------

func (s *Store) UpsertOrganization(_ context.Context, o org.Organization) (org.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == "" {
		o.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	if existing, ok := s.orgs[o.ID]; ok {
		o.CreatedAt = existing.CreatedAt
	} else {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if o.Tier == "" {
		o.Tier = org.TierStarter
	}

	s.orgs[o.ID] = o
	return o, nil
}

func (s *Store) GetOrganization(_ context.Context, id string) (org.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orgs[id]
	if !ok {
		return org.Organization{}, fmt.Errorf("organization %s not found", id)
	}
	return o, nil
}

// Helpers ----------------------------------------------------------------------

func clonePayload(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneMetadata(src map[string]any) map[string]any {
	return clonePayload(src)
}

func cloneGovernance(src *ingestion.DataOwnership) *ingestion.DataOwnership {
	if src == nil {
		return nil
	}
	dup := *src
	return &dup
}

func cloneRecord(rec ingestion.Record) ingestion.Record {
	rec.Payload = clonePayload(rec.Payload)
	rec.Governance = cloneGovernance(rec.Governance)
	return rec
}

func cloneEvent(ev decision.Event) decision.Event {
	ev.Advisory = append(json.RawMessage(nil), ev.Advisory...)
	ev.AuthoritativeSources = append([]string(nil), ev.AuthoritativeSources...)
	ev.RuleDecision.Rationale = append([]string(nil), ev.RuleDecision.Rationale...)
	return ev
}

func cloneKey(key ingestion.APIKey) ingestion.APIKey {
	key.AllowedSources = append([]ingestion.Source(nil), key.AllowedSources...)
	return key
}
