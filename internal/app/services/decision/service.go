// Package decision records the disposition a human applies to a policy-stamped
// advisory. The recording operation is single-shot: either every gate passes
// and one immutable event is persisted, or nothing is.
package decision

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	auditsvc "github.com/skymaintain/service-layer/internal/app/services/audit"

	"github.com/skymaintain/service-layer/internal/app/domain/audit"
	"github.com/skymaintain/service-layer/internal/app/domain/decision"
	"github.com/skymaintain/service-layer/internal/app/metrics"
	"github.com/skymaintain/service-layer/internal/app/policy"
	"github.com/skymaintain/service-layer/internal/app/rbac"
	"github.com/skymaintain/service-layer/internal/app/storage"
	"github.com/skymaintain/service-layer/internal/errors"
	"github.com/skymaintain/service-layer/pkg/logger"
)

// RecordRequest is the client's disposition of one advisory.
type RecordRequest struct {
	Advisory             json.RawMessage          `json:"advisory"`
	AuthoritativeSources []string                 `json:"authoritativeSources"`
	Acknowledgement      decision.Acknowledgement `json:"acknowledgement"`
	Disposition          decision.Disposition     `json:"disposition"`
	OverrideRationale    string                   `json:"overrideRationale,omitempty"`
	UserAction           decision.UserAction      `json:"userAction"`
	RuleInputs           decision.RuleEngineInput `json:"ruleInputs"`
	CanCreateWorkorder   bool                     `json:"canCreateWorkorder,omitempty"`
}

// Service orchestrates advisory authentication, rule evaluation and the
// acknowledgement, override and authorization gates before persisting a
// decision event.
type Service struct {
	events   storage.DecisionEventStore
	engine   *policy.Engine
	verifier *policy.StampVerifier
	audit    *auditsvc.Logger
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewService wires the decision recorder. metrics may be nil.
func NewService(events storage.DecisionEventStore, engine *policy.Engine, verifier *policy.StampVerifier, auditLog *auditsvc.Logger, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		events:   events,
		engine:   engine,
		verifier: verifier,
		audit:    auditLog,
		metrics:  m,
		log:      log,
	}
}

// Record runs the full gating sequence and persists one decision event. Every
// gate runs before any persistence; a failure at any step leaves no trace
// except the structured log line.
func (s *Service) Record(ctx context.Context, actor rbac.Actor, req RecordRequest) (decision.Event, error) {
	if err := rbac.Require(actor, rbac.RoleMaintenanceEngineer); err != nil {
		return decision.Event{}, err
	}
	if err := validateRequest(req); err != nil {
		return decision.Event{}, err
	}

	advisory, err := s.verifier.Verify(req.Advisory)
	if err != nil {
		return decision.Event{}, err
	}

	if req.Acknowledgement.AcknowledgedBy == "" || req.Acknowledgement.AcknowledgedAt == "" {
		return decision.Event{}, errors.Validation("Acknowledgement required")
	}
	if req.Disposition != decision.DispositionComply && req.OverrideRationale == "" {
		return decision.Event{}, errors.Validation("Override rationale required when advisory is not followed")
	}
	if req.Disposition == decision.DispositionWorkOrder {
		if !req.CanCreateWorkorder || req.UserAction != decision.ActionCreateWorkorder {
			return decision.Event{}, errors.Forbidden("Work orders require explicit authorization")
		}
	}

	ruleDecision := s.engine.Evaluate(req.RuleInputs)
	if s.metrics != nil {
		s.metrics.RuleOutcomes.WithLabelValues(string(ruleDecision.Outcome)).Inc()
	}
	if ruleDecision.Outcome == decision.OutcomeAuthoritativeRequired && req.Disposition != decision.DispositionComply {
		return decision.Event{}, errors.RuleConflict("Authoritative rule threshold reached; disposition must comply")
	}

	event := decision.Event{
		ID:                   "de_" + uuid.NewString(),
		OrgID:                actor.OrgID,
		CreatedAt:            time.Now().UTC(),
		Advisory:             advisory.Raw,
		AuthoritativeSources: req.AuthoritativeSources,
		Acknowledgement:      req.Acknowledgement,
		Disposition:          req.Disposition,
		OverrideRationale:    req.OverrideRationale,
		UserAction:           req.UserAction,
		CanCreateWorkorder:   req.CanCreateWorkorder && req.UserAction == decision.ActionCreateWorkorder,
		RuleDecision:         ruleDecision,
		RuleInputs:           req.RuleInputs,
		ActorID:              actor.UserID,
		ActorRole:            actor.Role,
	}

	stored, err := s.events.AppendEvent(ctx, event)
	if err != nil {
		return decision.Event{}, errors.Internal("failed to persist decision event").WithCause(err)
	}
	if s.metrics != nil {
		s.metrics.DecisionsRecorded.WithLabelValues(string(stored.Disposition)).Inc()
	}

	s.audit.Record(ctx, actor, audit.ActionDecisionEvent, "DecisionEvent", stored.ID, map[string]any{
		"disposition":        string(stored.Disposition),
		"userAction":         string(stored.UserAction),
		"canCreateWorkorder": stored.CanCreateWorkorder,
		"ruleOutcome":        string(stored.RuleDecision.Outcome),
	})
	return stored, nil
}

// List returns the org's decision events in append order.
func (s *Service) List(ctx context.Context, orgID string) ([]decision.Event, error) {
	return s.events.ListEvents(ctx, orgID)
}

// validateRequest checks request shape before any gate runs, reporting
// field-level detail for every malformed field at once.
func validateRequest(req RecordRequest) error {
	e := errors.Validation("decision request is invalid")
	valid := true

	if len(req.Advisory) == 0 {
		e.WithField("advisory", "required")
		valid = false
	}
	if len(req.AuthoritativeSources) == 0 {
		e.WithField("authoritativeSources", "at least one citation is required")
		valid = false
	}
	for _, src := range req.AuthoritativeSources {
		if src == "" {
			e.WithField("authoritativeSources", "citations must be non-empty")
			valid = false
			break
		}
	}
	if !req.Disposition.Valid() {
		e.WithField("disposition", "must be one of NO_ACTION, MONITOR, SCHEDULE, COMPLY, WORK_ORDER")
		valid = false
	}
	if !req.UserAction.Valid() {
		e.WithField("userAction", "must be one of acknowledge, record_decision, create_workorder")
		valid = false
	}
	if req.RuleInputs.Severity != "" && !req.RuleInputs.Severity.Valid() {
		e.WithField("ruleInputs.severity", "must be one of low, medium, high, critical")
		valid = false
	}
	if req.RuleInputs.LifeLimitRemainingPct != nil {
		pct := *req.RuleInputs.LifeLimitRemainingPct
		if pct < 0 || pct > 100 {
			e.WithField("ruleInputs.lifeLimitRemainingPct", "must be between 0 and 100")
			valid = false
		}
	}

	if !valid {
		return e
	}
	return nil
}
