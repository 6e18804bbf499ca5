package domain

import (
	"fmt"
	"sort"
)

type ErrorDetail struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
	Hint    string `json:"hint,omitempty"`
}

// ValidationError carries field-level detail for the API layer. It
// unwraps to ErrInvalidArgument so callers can match on the taxonomy.
type ValidationError struct {
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s (%d problems)", e.Message, len(e.Details))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

var knownMetrics = map[string]bool{
	MetricCost:   true,
	MetricCPU:    true,
	MetricMemory: true,
	MetricDisk:   true,
	MetricBudget: true,
}

var knownOperators = map[string]bool{
	OpGreaterThan: true,
	OpLessThan:    true,
	OpEqual:       true,
}

// ValidateRule rejects a rule before any write. Unknown channel types
// pass validation; the dispatcher warns and skips them at send time.
func ValidateRule(rule Rule) error {
	var details []ErrorDetail
	if rule.TenantID == "" {
		details = append(details, ErrorDetail{Field: "tenantId", Problem: "missing"})
	}
	if rule.Name == "" {
		details = append(details, ErrorDetail{Field: "name", Problem: "missing"})
	}
	if !knownMetrics[rule.MetricType] {
		details = append(details, ErrorDetail{Field: "metricType", Problem: "unsupported", Hint: "Use COST, CPU, MEMORY, DISK or BUDGET"})
	}
	if !knownOperators[rule.Operator] {
		details = append(details, ErrorDetail{Field: "operator", Problem: "unsupported", Hint: "Use GT, LT or EQ"})
	}
	if len(rule.Thresholds) == 0 {
		details = append(details, ErrorDetail{Field: "thresholds", Problem: "missing", Hint: "Provide at least one tier"})
	} else if !sort.Float64sAreSorted(rule.Thresholds) {
		details = append(details, ErrorDetail{Field: "thresholds", Problem: "not ascending", Hint: "Order tiers low to high"})
	}
	if rule.MetricType == MetricBudget {
		if rule.Budget == nil {
			details = append(details, ErrorDetail{Field: "budget", Problem: "missing", Hint: "BUDGET rules need amount and period"})
		} else {
			if rule.Budget.Amount <= 0 {
				details = append(details, ErrorDetail{Field: "budget.amount", Problem: "not positive"})
			}
			// Quarterly and annual windowing is not defined yet, so
			// those periods are rejected instead of silently treated
			// as monthly.
			if rule.Budget.Period != PeriodMonthly {
				details = append(details, ErrorDetail{Field: "budget.period", Problem: "unsupported", Hint: "Only MONTHLY is supported"})
			}
		}
	} else if rule.Budget != nil {
		details = append(details, ErrorDetail{Field: "budget", Problem: "unexpected", Hint: "Only BUDGET rules carry a budget config"})
	}
	for i, ch := range rule.Channels {
		if ch.Type == "" {
			details = append(details, ErrorDetail{Field: fmt.Sprintf("channels[%d].type", i), Problem: "missing"})
		}
	}
	if len(details) > 0 {
		return &ValidationError{Message: "rule failed validation", Details: details}
	}
	return nil
}
