package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"cloudgov-backend/internal/domain"
	"cloudgov-backend/internal/metrics"
)

// RuleStore supplies the enabled rules of a tenant.
type RuleStore interface {
	ListEnabled(ctx context.Context, tenantID string) ([]domain.Rule, error)
}

// EventStore creates events under the one-ACTIVE-per-(rule,tier)
// contract. The created flag is false when an ACTIVE event already
// held the slot.
type EventStore interface {
	CreateIfNoneActive(ctx context.Context, event domain.Event) (domain.Event, bool, error)
}

// Dispatcher delivers a freshly created event to the rule's channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.Event, channels []domain.Channel)
}

// Evaluator walks a tenant's enabled rules, compares current metric
// values against each threshold tier and creates deduplicated events
// for new breaches. Repeated passes over an unchanged breach create
// nothing new.
type Evaluator struct {
	rules       RuleStore
	events      EventStore
	metrics     metrics.Source
	dispatcher  Dispatcher
	log         *slog.Logger
	readTimeout time.Duration
}

func NewEvaluator(rules RuleStore, events EventStore, source metrics.Source, dispatcher Dispatcher, logger *slog.Logger, readTimeout time.Duration) *Evaluator {
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	return &Evaluator{
		rules:       rules,
		events:      events,
		metrics:     source,
		dispatcher:  dispatcher,
		log:         logger,
		readTimeout: readTimeout,
	}
}

// Evaluate returns only the events created by this pass. A metric read
// failure skips that rule and the pass goes on; a storage failure stops
// the pass and surfaces to the caller, with everything created so far
// already committed.
func (e *Evaluator) Evaluate(ctx context.Context, tenantID string) ([]domain.Event, error) {
	rules, err := e.rules.ListEnabled(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list enabled rules: %w", err)
	}
	created := []domain.Event{}
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		value, err := e.readValue(ctx, rule)
		if err != nil {
			e.log.Warn("metric read failed, skipping rule",
				slog.String("rule_id", rule.ID),
				slog.String("metric", rule.MetricType),
				slog.String("error", err.Error()))
			continue
		}
		for _, tier := range rule.Thresholds {
			breached := Breached(rule.Operator, value, tier)
			if !breached {
				// Tiers ascend, so once a GT rule clears one
				// tier the higher ones cannot be breached.
				if rule.Operator == domain.OpGreaterThan {
					break
				}
				continue
			}
			event := domain.Event{
				RuleID:         rule.ID,
				TenantID:       rule.TenantID,
				ThresholdTier:  tier,
				CurrentValue:   value,
				ThresholdValue: tier,
				Message:        renderMessage(rule, value, tier),
			}
			stored, fresh, err := e.events.CreateIfNoneActive(ctx, event)
			if err != nil {
				return created, fmt.Errorf("create event: %w", err)
			}
			if !fresh {
				continue
			}
			created = append(created, stored)
			e.dispatcher.Dispatch(ctx, stored, rule.Channels)
		}
	}
	return created, nil
}

func (e *Evaluator) readValue(ctx context.Context, rule domain.Rule) (float64, error) {
	readCtx, cancel := context.WithTimeout(ctx, e.readTimeout)
	defer cancel()
	value, err := e.metrics.Read(readCtx, rule.TenantID, rule.MetricType, rule.Scope)
	if err != nil {
		return 0, err
	}
	// Budget tiers are percent of amount, so the raw spend is
	// converted before comparing.
	if rule.MetricType == domain.MetricBudget && rule.Budget != nil {
		return value / rule.Budget.Amount * 100, nil
	}
	return value, nil
}

// Breached reports whether value satisfies the operator against the
// tier. GT and LT are strict; EQ matches within 0.01.
func Breached(operator string, value, tier float64) bool {
	switch operator {
	case domain.OpGreaterThan:
		return value > tier
	case domain.OpLessThan:
		return value < tier
	case domain.OpEqual:
		return math.Abs(value-tier) < domain.EqualEpsilon
	default:
		return false
	}
}

func renderMessage(rule domain.Rule, value, tier float64) string {
	metric := rule.MetricType
	if rule.MetricType == domain.MetricBudget {
		return fmt.Sprintf("%s: budget usage is %.2f%%, crossing the %.2f%% tier", rule.Name, value, tier)
	}
	return fmt.Sprintf("%s: %s is %.2f, crossing threshold of %.2f", rule.Name, metric, value, tier)
}
