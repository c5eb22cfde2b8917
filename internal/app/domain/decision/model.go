// Package decision defines advisory dispositions, rule-engine inputs and
// outcomes, and the immutable decision event recorded when a human acts on a
// policy-stamped advisory.
package decision

import (
	"encoding/json"
	"time"
)

// Disposition is the human's chosen response to an advisory.
type Disposition string

const (
	DispositionNoAction  Disposition = "NO_ACTION"
	DispositionMonitor   Disposition = "MONITOR"
	DispositionSchedule  Disposition = "SCHEDULE"
	DispositionComply    Disposition = "COMPLY"
	DispositionWorkOrder Disposition = "WORK_ORDER"
)

// Valid reports whether d is a known disposition.
func (d Disposition) Valid() bool {
	switch d {
	case DispositionNoAction, DispositionMonitor, DispositionSchedule,
		DispositionComply, DispositionWorkOrder:
		return true
	}
	return false
}

// UserAction is the UI-level action that produced the request.
type UserAction string

const (
	ActionAcknowledge     UserAction = "acknowledge"
	ActionRecordDecision  UserAction = "record_decision"
	ActionCreateWorkorder UserAction = "create_workorder"
)

// Valid reports whether a is a known user action.
func (a UserAction) Valid() bool {
	switch a {
	case ActionAcknowledge, ActionRecordDecision, ActionCreateWorkorder:
		return true
	}
	return false
}

// Outcome is the bounded result of rule-engine evaluation.
// OutcomeAuthoritativeRequired is the hard compliance gate: once produced, the
// only acceptable disposition is COMPLY.
type Outcome string

const (
	OutcomeAuthoritativeRequired Outcome = "AUTHORITATIVE_REQUIRED"
	OutcomeActionRecommended     Outcome = "ACTION_RECOMMENDED"
	OutcomeMonitorAdvised        Outcome = "MONITOR_ADVISED"
	OutcomeNoAction              Outcome = "NO_ACTION"
)

// Severity grades an advisory's underlying condition.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// RuleEngineInput carries the compliance-relevant facts evaluated for one
// decision. Every decision event retains the inputs verbatim so the recorded
// RuleDecision can be reproduced by replaying the engine.
type RuleEngineInput struct {
	// AuthoritativeDirective is true when a regulatory mandate (an
	// airworthiness directive or equivalent) applies to the condition.
	AuthoritativeDirective bool     `json:"authoritativeDirective"`
	Severity               Severity `json:"severity"`
	// DaysUntilDue is the remaining window before the underlying item is
	// due; nil when no due date applies.
	DaysUntilDue *int `json:"daysUntilDue,omitempty"`
	// LifeLimitRemainingPct is the remaining share of a component's life
	// limit, 0-100; nil when the condition is not life-limited.
	LifeLimitRemainingPct *float64 `json:"lifeLimitRemainingPct,omitempty"`
	// DeferralAllowed is true when the operator's MEL permits deferral.
	DeferralAllowed bool   `json:"deferralAllowed"`
	MELCategory     string `json:"melCategory,omitempty"`
}

// RuleDecision is the rule engine's output: one bounded outcome plus the
// rationale trail explaining which rules fired.
type RuleDecision struct {
	Outcome   Outcome  `json:"outcome"`
	Rationale []string `json:"rationale"`
}

// Acknowledgement records who acknowledged the advisory and when. Both fields
// are required on every decision event.
type Acknowledgement struct {
	AcknowledgedBy string `json:"acknowledgedBy"`
	AcknowledgedAt string `json:"acknowledgedAt"`
}

// Event is the immutable record of a disposition applied to a policy-stamped
// advisory. Events are created once and never updated or deleted.
type Event struct {
	ID                   string          `json:"id"`
	OrgID                string          `json:"orgId,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	Advisory             json.RawMessage `json:"advisory"`
	AuthoritativeSources []string        `json:"authoritativeSources"`
	Acknowledgement      Acknowledgement `json:"acknowledgement"`
	Disposition          Disposition     `json:"disposition"`
	OverrideRationale    string          `json:"overrideRationale,omitempty"`
	UserAction           UserAction      `json:"userAction"`
	CanCreateWorkorder   bool            `json:"canCreateWorkorder"`
	RuleDecision         RuleDecision    `json:"ruleDecision"`
	RuleInputs           RuleEngineInput `json:"ruleInputs"`
	ActorID              string          `json:"actorId,omitempty"`
	ActorRole            string          `json:"actorRole,omitempty"`
}
