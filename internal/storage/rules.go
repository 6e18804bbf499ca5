package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cloudgov-backend/internal/domain"
)

// RuleRepository persists alert rules. The full rule spec lives in
// rule_json; the extracted columns exist for listing and filtering.
type RuleRepository struct {
	Store *Store
}

func NewRuleRepository(store *Store) *RuleRepository {
	return &RuleRepository{Store: store}
}

func (r *RuleRepository) Create(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	rule.ID = uuid.NewString()
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	ruleJSON, err := json.Marshal(rule)
	if err != nil {
		return domain.Rule{}, err
	}
	_, err = r.Store.Pool.Exec(ctx, `
		INSERT INTO alert_rules (id, tenant_id, name, metric_type, rule_json, enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rule.ID, rule.TenantID, rule.Name, rule.MetricType, ruleJSON, rule.Enabled, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("create rule: %w", err)
	}
	return rule, nil
}

func (r *RuleRepository) Update(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	rule.UpdatedAt = time.Now().UTC()
	ruleJSON, err := json.Marshal(rule)
	if err != nil {
		return domain.Rule{}, err
	}
	tag, err := r.Store.Pool.Exec(ctx, `
		UPDATE alert_rules SET name=$1, metric_type=$2, rule_json=$3, enabled=$4, updated_at=$5 WHERE id=$6`,
		rule.Name, rule.MetricType, ruleJSON, rule.Enabled, rule.UpdatedAt, rule.ID)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Rule{}, domain.ErrNotFound
	}
	return rule, nil
}

func (r *RuleRepository) Get(ctx context.Context, id string) (domain.Rule, error) {
	row := r.Store.Pool.QueryRow(ctx, `SELECT rule_json FROM alert_rules WHERE id=$1`, id)
	return scanRule(row)
}

func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.Store.Pool.Exec(ctx, `DELETE FROM alert_rules WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RuleRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	tag, err := r.Store.Pool.Exec(ctx, `
		UPDATE alert_rules
		SET enabled=$1, rule_json = jsonb_set(rule_json, '{enabled}', to_jsonb($1::boolean)), updated_at=now()
		WHERE id=$2`, enabled, id)
	if err != nil {
		return fmt.Errorf("set rule enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RuleRepository) List(ctx context.Context, tenantID string) ([]domain.Rule, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT rule_json FROM alert_rules WHERE tenant_id=$1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// ListEnabled feeds the evaluator.
func (r *RuleRepository) ListEnabled(ctx context.Context, tenantID string) ([]domain.Rule, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT rule_json FROM alert_rules WHERE tenant_id=$1 AND enabled = true ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list enabled rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// ListTenants returns every tenant that has at least one enabled rule,
// for the worker's evaluation schedule.
func (r *RuleRepository) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT DISTINCT tenant_id FROM alert_rules WHERE enabled = true`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()
	tenants := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

func scanRule(row pgx.Row) (domain.Rule, error) {
	var ruleJSON []byte
	if err := row.Scan(&ruleJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rule{}, domain.ErrNotFound
		}
		return domain.Rule{}, err
	}
	var rule domain.Rule
	if err := json.Unmarshal(ruleJSON, &rule); err != nil {
		return domain.Rule{}, fmt.Errorf("decode rule json: %w", err)
	}
	return rule, nil
}

func collectRules(rows pgx.Rows) ([]domain.Rule, error) {
	results := []domain.Rule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rule)
	}
	return results, rows.Err()
}
