package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CostRepository reads cost records for the cost metric source. Spend
// is the sum for the current calendar month, optionally narrowed by a
// "provider:<name>" scope.
type CostRepository struct {
	Store *Store
}

func NewCostRepository(store *Store) *CostRepository {
	return &CostRepository{Store: store}
}

func (r *CostRepository) MonthlySpend(ctx context.Context, tenantID, scope string, now time.Time) (float64, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	query := `SELECT COALESCE(SUM(amount), 0) FROM cost_records WHERE tenant_id=$1 AND usage_date >= $2`
	args := []any{tenantID, monthStart}
	if provider, ok := providerScope(scope); ok {
		query += ` AND provider=$3`
		args = append(args, provider)
	}
	row := r.Store.Pool.QueryRow(ctx, query, args...)
	var total float64
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("monthly spend: %w", err)
	}
	return total, nil
}

func providerScope(scope string) (string, bool) {
	kind, value, found := strings.Cut(scope, ":")
	if !found || kind != "provider" || value == "" {
		return "", false
	}
	return value, true
}
