// Package ingestion accepts raw maintenance data at the advisory-free
// boundary. Payloads carrying recommendation or work-order content are
// rejected here no matter what the caller attempts.
package ingestion

import (
	"context"
	"strings"

	auditsvc "github.com/skymaintain/service-layer/internal/app/services/audit"

	"github.com/skymaintain/service-layer/internal/app/domain/audit"
	"github.com/skymaintain/service-layer/internal/app/domain/ingestion"
	"github.com/skymaintain/service-layer/internal/app/metrics"
	"github.com/skymaintain/service-layer/internal/app/policy"
	"github.com/skymaintain/service-layer/internal/app/rbac"
	"github.com/skymaintain/service-layer/internal/app/storage"
	"github.com/skymaintain/service-layer/internal/errors"
	"github.com/skymaintain/service-layer/pkg/logger"
)

// forbiddenPayloadKeys are advisory concepts that must never cross the
// ingestion boundary, at any nesting depth.
var forbiddenPayloadKeys = []string{"recommendation", "workOrder"}

// Service enforces the ingestion boundary and appends accepted records to the
// org-scoped record store.
type Service struct {
	records storage.IngestionStore
	orgs    storage.OrgStore
	audit   *auditsvc.Logger
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewService wires the ingestion boundary. metrics may be nil.
func NewService(records storage.IngestionStore, orgs storage.OrgStore, auditLog *auditsvc.Logger, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		records: records,
		orgs:    orgs,
		audit:   auditLog,
		metrics: m,
		log:     log,
	}
}

// Ingest validates and appends a single record. Validation completes fully
// before anything is persisted; the audit write afterwards is best effort.
func (s *Service) Ingest(ctx context.Context, actor rbac.Actor, rec ingestion.Record) (ingestion.Record, error) {
	if err := rbac.Require(actor, rbac.RoleMaintenanceEngineer); err != nil {
		return ingestion.Record{}, err
	}

	rec.OrgID = actor.OrgID
	if err := s.validateRecord(ctx, &rec); err != nil {
		if errors.Is(err, errors.CodeBoundaryViolation) {
			if s.metrics != nil {
				s.metrics.BoundaryViolations.Inc()
			}
			s.log.WithFields(map[string]any{
				"orgId":      actor.OrgID,
				"actorId":    actor.UserID,
				"aircraftId": rec.AircraftID,
			}).Warn("ingestion boundary violation")
		}
		return ingestion.Record{}, err
	}

	stored, err := s.records.AppendRecord(ctx, rec)
	if err != nil {
		return ingestion.Record{}, errors.Internal("failed to persist ingestion record").WithCause(err)
	}
	if s.metrics != nil {
		s.metrics.RecordsIngested.WithLabelValues(string(stored.Source)).Inc()
	}

	s.audit.Record(ctx, actor, audit.ActionIngest, "IngestionRecord", stored.AircraftID, auditMetadata(stored))
	return stored, nil
}

// IngestBatch validates each record independently, appends the valid ones and
// records a log entry summarising the outcome. A batch where every record
// fails still produces a log entry.
func (s *Service) IngestBatch(ctx context.Context, actor rbac.Actor, kind ingestion.BatchKind, records []ingestion.Record, apiKeyID string) (ingestion.LogEntry, error) {
	if err := rbac.Require(actor, rbac.RoleMaintenanceEngineer); err != nil {
		return ingestion.LogEntry{}, err
	}
	if len(records) == 0 {
		return ingestion.LogEntry{}, errors.Validation("batch must contain at least one record")
	}

	var recordErrors []ingestion.RecordError
	created := 0
	for i := range records {
		rec := records[i]
		rec.OrgID = actor.OrgID
		if err := s.validateRecord(ctx, &rec); err != nil {
			if errors.Is(err, errors.CodeBoundaryViolation) && s.metrics != nil {
				s.metrics.BoundaryViolations.Inc()
			}
			recordErrors = append(recordErrors, ingestion.RecordError{Index: i, Reason: err.Error()})
			continue
		}
		stored, err := s.records.AppendRecord(ctx, rec)
		if err != nil {
			recordErrors = append(recordErrors, ingestion.RecordError{Index: i, Reason: "persistence failure"})
			s.log.WithError(err).WithField("index", i).Error("batch record append failed")
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordsIngested.WithLabelValues(string(stored.Source)).Inc()
		}
		created++
	}

	entry := ingestion.LogEntry{
		OrgID:          actor.OrgID,
		Kind:           kind,
		RecordCount:    len(records),
		RecordsCreated: created,
		RecordsFailed:  len(records) - created,
		Status:         batchStatus(created, len(records)),
		Errors:         recordErrors,
		APIKeyID:       apiKeyID,
		InitiatedBy:    actor.UserID,
	}
	stored, err := s.records.AppendLogEntry(ctx, entry)
	if err != nil {
		return ingestion.LogEntry{}, errors.Internal("failed to persist ingestion log entry").WithCause(err)
	}

	s.audit.Record(ctx, actor, audit.ActionIngestBatch, "IngestionLogEntry", stored.ID, map[string]any{
		"kind":           string(kind),
		"recordCount":    len(records),
		"recordsCreated": created,
		"recordsFailed":  len(records) - created,
		"status":         string(stored.Status),
	})
	return stored, nil
}

// ListRecords returns the org's ingested records in append order.
func (s *Service) ListRecords(ctx context.Context, orgID string) ([]ingestion.Record, error) {
	return s.records.ListRecords(ctx, orgID)
}

// ListLog returns the org's batch ingestion log in append order.
func (s *Service) ListLog(ctx context.Context, orgID string) ([]ingestion.LogEntry, error) {
	return s.records.ListLogEntries(ctx, orgID)
}

// validateRecord runs structural validation, the governance policy and the
// boundary guard. It normalises the retention period in place when governance
// arrives without one.
func (s *Service) validateRecord(ctx context.Context, rec *ingestion.Record) error {
	if !rec.Source.Valid() {
		return errors.Validation("unknown ingestion source").WithField("source", string(rec.Source))
	}
	if rec.AircraftID == "" {
		return errors.Validation("record is missing required fields").WithField("aircraftId", "required")
	}
	if rec.Timestamp == "" {
		return errors.Validation("record is missing required fields").WithField("timestamp", "required")
	}
	if rec.Payload == nil {
		return errors.Validation("record is missing required fields").WithField("payload", "required")
	}

	if rec.Governance == nil && s.governanceRequired(ctx, rec.OrgID) {
		return errors.Validation("governance metadata is required by organization policy").WithField("governance", "required")
	}
	if rec.Governance != nil {
		if !rec.Governance.Classification.Valid() {
			return errors.Validation("unknown governance classification").
				WithField("classification", string(rec.Governance.Classification))
		}
		if rec.Governance.RetentionDays == 0 {
			if days, ok := policy.DefaultRetention(rec.Governance.Classification); ok {
				rec.Governance.RetentionDays = days
			}
		}
		if issues := policy.ValidateOwnership(*rec.Governance); len(issues) > 0 {
			return errors.Validation("invalid governance metadata: %s", strings.Join(issues, "; "))
		}
	}

	if key, found := findForbiddenKey(rec.Payload); found {
		return errors.BoundaryViolation("ingestion boundary violation: payload contains %q", key)
	}
	return nil
}

func (s *Service) governanceRequired(ctx context.Context, orgID string) bool {
	if s.orgs == nil || orgID == "" {
		return false
	}
	o, err := s.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		return false
	}
	return o.RequireGovernance
}

// findForbiddenKey walks the payload recursively through objects and arrays.
func findForbiddenKey(value any) (string, bool) {
	switch v := value.(type) {
	case map[string]any:
		for key, nested := range v {
			for _, forbidden := range forbiddenPayloadKeys {
				if key == forbidden {
					return key, true
				}
			}
			if key, found := findForbiddenKey(nested); found {
				return key, true
			}
		}
	case []any:
		for _, item := range v {
			if key, found := findForbiddenKey(item); found {
				return key, true
			}
		}
	}
	return "", false
}

func batchStatus(created, total int) ingestion.LogStatus {
	switch {
	case created == total:
		return ingestion.LogSuccess
	case created == 0:
		return ingestion.LogFailed
	default:
		return ingestion.LogPartial
	}
}

func auditMetadata(rec ingestion.Record) map[string]any {
	metadata := map[string]any{
		"source":     string(rec.Source),
		"tailNumber": rec.TailNumber,
	}
	if rec.Governance != nil {
		metadata["classification"] = string(rec.Governance.Classification)
		metadata["retentionDays"] = rec.Governance.RetentionDays
	}
	return metadata
}
