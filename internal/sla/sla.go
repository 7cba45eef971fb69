// Package sla derives issue deadlines and standing from per-priority hour budgets.
package sla

import (
	"time"

	"github.com/EdgeAdaptics/triage/internal/model"
)

// atRiskFraction is the share of the budget below which an open deadline is at risk.
const atRiskFraction = 0.25

// Budgets maps each priority to the hours allowed before its deadline.
type Budgets map[model.Priority]int

// DefaultBudgets returns critical=2h, high=8h, medium=24h, low=72h.
func DefaultBudgets() Budgets {
	return Budgets{
		model.PriorityCritical: 2,
		model.PriorityHigh:     8,
		model.PriorityMedium:   24,
		model.PriorityLow:      72,
	}
}

// Hours returns the budget for p, falling back to the default table.
func (b Budgets) Hours(p model.Priority) int {
	if h, ok := b[p]; ok && h > 0 {
		return h
	}
	return DefaultBudgets()[model.PriorityOrDefault(p)]
}

// Clone returns an independent copy.
func (b Budgets) Clone() Budgets {
	out := make(Budgets, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Result is the derived SLA state of an issue.
type Result struct {
	Deadline model.Timestamp
	Status   model.SLAStatus
}

// Evaluate computes the deadline and status for an issue of priority p
// created at createdAt, as observed at now.
func Evaluate(b Budgets, p model.Priority, createdAt model.Timestamp, now time.Time) Result {
	budget := time.Duration(b.Hours(p)) * time.Hour
	deadline := createdAt.Add(budget)
	remaining := deadline.Sub(now)

	status := model.SLAOnTrack
	switch {
	case remaining < 0:
		status = model.SLABreached
	case float64(remaining) < float64(budget)*atRiskFraction:
		status = model.SLAAtRisk
	}

	return Result{Deadline: model.NewTimestamp(deadline), Status: status}
}
