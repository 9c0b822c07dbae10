package evaluate

import "github.com/cloudops-tools/quota-notifier/pkg/model"

// PercentUsed returns the integer percentage of quota consumed, using
// truncating division to match the platform's own accounting. limitMB must
// be positive; callers are expected to have dropped zero-quota organizations
// before evaluation.
func PercentUsed(usedMB, limitMB int) int {
	return 100 * usedMB / limitMB
}

// Evaluator decides whether an organization's usage crosses the configured
// alert threshold. It performs no I/O.
type Evaluator struct {
	thresholdPct int
}

// New creates an evaluator for the given threshold percent. The threshold is
// an inclusive lower bound: usage at exactly the threshold fires an alert.
func New(thresholdPct int) *Evaluator {
	return &Evaluator{thresholdPct: thresholdPct}
}

// Threshold returns the configured threshold percent.
func (e *Evaluator) Threshold() int { return e.thresholdPct }

// Evaluate produces the alert decision for one snapshot. Usage above 100%
// (over-quota) is an ordinary eligible result, not an error.
func (e *Evaluator) Evaluate(snap model.OrgUsageSnapshot) model.AlertDecision {
	return model.AlertDecision{
		OrgID:       snap.OrgID,
		OrgName:     snap.OrgName,
		PercentUsed: snap.PercentUsed,
		Eligible:    snap.PercentUsed >= e.thresholdPct,
	}
}
