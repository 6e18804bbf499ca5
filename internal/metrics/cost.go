package metrics

import (
	"context"
	"time"
)

// CostStore is what the cost source needs from storage.
type CostStore interface {
	MonthlySpend(ctx context.Context, tenantID, scope string, now time.Time) (float64, error)
}

// CostSource reads tenant spend for the current month. It backs both
// COST rules (absolute spend) and BUDGET rules (the evaluator turns the
// spend into percent-of-amount).
type CostSource struct {
	store CostStore
	now   func() time.Time
}

func NewCostSource(store CostStore) *CostSource {
	return &CostSource{store: store, now: time.Now}
}

func (s *CostSource) Read(ctx context.Context, tenantID, metricType, scope string) (float64, error) {
	return s.store.MonthlySpend(ctx, tenantID, scope, s.now().UTC())
}
