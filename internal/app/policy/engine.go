package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/skymaintain/service-layer/internal/app/domain/decision"
)

// Thresholds is the domain configuration the rule engine evaluates against.
// The values are deployment-tunable; the obligation that crossing an
// authoritative threshold yields AUTHORITATIVE_REQUIRED is not.
type Thresholds struct {
	// CriticalSeverityAuthoritative treats critical-severity conditions as
	// regulatory mandates.
	CriticalSeverityAuthoritative bool `yaml:"criticalSeverityAuthoritative"`
	// AuthoritativeDueDays: a non-deferrable item due within this window
	// crosses the authoritative threshold.
	AuthoritativeDueDays int `yaml:"authoritativeDueDays"`
	// ActionDueDays: any item due within this window warrants action.
	ActionDueDays int `yaml:"actionDueDays"`
	// ActionLifeLimitPct: remaining life at or below this share warrants
	// action.
	ActionLifeLimitPct float64 `yaml:"actionLifeLimitPct"`
	// MonitorLifeLimitPct: remaining life at or below this share warrants
	// monitoring.
	MonitorLifeLimitPct float64 `yaml:"monitorLifeLimitPct"`
}

// DefaultThresholds returns the compiled-in threshold configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalSeverityAuthoritative: true,
		AuthoritativeDueDays:          10,
		ActionDueDays:                 30,
		ActionLifeLimitPct:            10,
		MonitorLifeLimitPct:           25,
	}
}

// LoadThresholds reads threshold configuration from a YAML file.
func LoadThresholds(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("read rule thresholds: %w", err)
	}
	t := DefaultThresholds()
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Thresholds{}, fmt.Errorf("parse rule thresholds: %w", err)
	}
	return t, nil
}

// Engine maps structured rule inputs to one bounded decision outcome. It is
// stateless and deterministic: no clock, no randomness, no I/O, so a recorded
// decision can be reproduced by replaying the same inputs.
type Engine struct {
	thresholds Thresholds
}

// NewEngine builds a rule engine over the given thresholds.
func NewEngine(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

var outcomeRank = map[decision.Outcome]int{
	decision.OutcomeAuthoritativeRequired: 3,
	decision.OutcomeActionRecommended:     2,
	decision.OutcomeMonitorAdvised:        1,
	decision.OutcomeNoAction:              0,
}

// Evaluate produces exactly one outcome for any well-formed input. Rules are
// checked in a fixed order; the highest-ranked outcome among the fired rules
// wins and the rationale lists every rule that fired.
func (e *Engine) Evaluate(in decision.RuleEngineInput) decision.RuleDecision {
	t := e.thresholds
	outcome := decision.OutcomeNoAction
	var rationale []string

	fire := func(o decision.Outcome, reason string) {
		rationale = append(rationale, reason)
		if outcomeRank[o] > outcomeRank[outcome] {
			outcome = o
		}
	}

	if in.AuthoritativeDirective {
		fire(decision.OutcomeAuthoritativeRequired,
			"an authoritative regulatory directive applies to this condition")
	}
	if t.CriticalSeverityAuthoritative && in.Severity == decision.SeverityCritical {
		fire(decision.OutcomeAuthoritativeRequired,
			"condition severity is critical")
	}
	if in.DaysUntilDue != nil && *in.DaysUntilDue <= t.AuthoritativeDueDays && !in.DeferralAllowed {
		fire(decision.OutcomeAuthoritativeRequired,
			fmt.Sprintf("item is due within %d days and deferral is not available", t.AuthoritativeDueDays))
	}

	if in.Severity == decision.SeverityHigh {
		fire(decision.OutcomeActionRecommended, "condition severity is high")
	}
	if in.DaysUntilDue != nil && *in.DaysUntilDue <= t.ActionDueDays {
		fire(decision.OutcomeActionRecommended,
			fmt.Sprintf("item is due within %d days", t.ActionDueDays))
	}
	if in.LifeLimitRemainingPct != nil && *in.LifeLimitRemainingPct <= t.ActionLifeLimitPct {
		fire(decision.OutcomeActionRecommended,
			fmt.Sprintf("remaining life is at or below %.0f%%", t.ActionLifeLimitPct))
	}

	if in.Severity == decision.SeverityMedium {
		fire(decision.OutcomeMonitorAdvised, "condition severity is medium")
	}
	if in.LifeLimitRemainingPct != nil && *in.LifeLimitRemainingPct <= t.MonitorLifeLimitPct {
		fire(decision.OutcomeMonitorAdvised,
			fmt.Sprintf("remaining life is at or below %.0f%%", t.MonitorLifeLimitPct))
	}

	if len(rationale) == 0 {
		rationale = append(rationale, "no rule thresholds crossed")
	}
	return decision.RuleDecision{Outcome: outcome, Rationale: rationale}
}
