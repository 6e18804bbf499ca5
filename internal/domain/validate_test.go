package domain

import (
	"errors"
	"testing"
)

func validCostRule() Rule {
	return Rule{
		TenantID:   "tenant-1",
		Name:       "Monthly cost alert",
		MetricType: MetricCost,
		Thresholds: []float64{1000},
		Operator:   OpGreaterThan,
		Channels:   []Channel{{Type: "email", Config: []byte(`{"to":"ops@example.com"}`)}},
	}
}

func validBudgetRule() Rule {
	rule := validCostRule()
	rule.MetricType = MetricBudget
	rule.Thresholds = []float64{50, 80, 100}
	rule.Budget = &BudgetConfig{Amount: 1000, Period: PeriodMonthly}
	return rule
}

func TestValidateRuleAccepts(t *testing.T) {
	if err := ValidateRule(validCostRule()); err != nil {
		t.Fatalf("cost rule should validate: %v", err)
	}
	if err := ValidateRule(validBudgetRule()); err != nil {
		t.Fatalf("budget rule should validate: %v", err)
	}
}

func TestValidateRuleRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Rule)
		field  string
	}{
		{"missing tenant", func(r *Rule) { r.TenantID = "" }, "tenantId"},
		{"missing name", func(r *Rule) { r.Name = "" }, "name"},
		{"unknown metric", func(r *Rule) { r.MetricType = "LATENCY" }, "metricType"},
		{"unknown operator", func(r *Rule) { r.Operator = "BETWEEN" }, "operator"},
		{"no thresholds", func(r *Rule) { r.Thresholds = nil }, "thresholds"},
		{"descending thresholds", func(r *Rule) { r.Thresholds = []float64{100, 80, 50} }, "thresholds"},
		{"budget on non-budget rule", func(r *Rule) { r.Budget = &BudgetConfig{Amount: 10, Period: PeriodMonthly} }, "budget"},
		{"untyped channel", func(r *Rule) { r.Channels = []Channel{{Config: []byte(`{}`)}} }, "channels[0].type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := validCostRule()
			tc.mutate(&rule)
			err := ValidateRule(rule)
			if err == nil {
				t.Fatalf("expected a validation error")
			}
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("validation errors must unwrap to ErrInvalidArgument, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			found := false
			for _, detail := range verr.Details {
				if detail.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected a detail for %q, got %+v", tc.field, verr.Details)
			}
		})
	}
}

func TestValidateBudgetRule(t *testing.T) {
	rule := validBudgetRule()
	rule.Budget = nil
	if err := ValidateRule(rule); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("BUDGET rule without a budget must fail, got %v", err)
	}

	rule = validBudgetRule()
	rule.Budget.Amount = 0
	if err := ValidateRule(rule); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("zero budget amount must fail, got %v", err)
	}

	rule = validBudgetRule()
	rule.Budget.Period = PeriodQuarterly
	if err := ValidateRule(rule); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("QUARTERLY period is not computed yet and must fail, got %v", err)
	}
}

func TestValidateRuleAllowsUnknownChannelType(t *testing.T) {
	rule := validCostRule()
	rule.Channels = []Channel{{Type: "pager", Config: []byte(`{}`)}}
	if err := ValidateRule(rule); err != nil {
		t.Fatalf("unknown channel types pass validation, got %v", err)
	}
}
