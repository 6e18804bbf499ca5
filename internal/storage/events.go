package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cloudgov-backend/internal/domain"
)

// EventRepository persists triggered alert events. The dedup contract
// (at most one ACTIVE event per rule and tier) is enforced by the
// partial unique index uq_alert_events_active; concurrent evaluators
// race on the insert and exactly one wins.
type EventRepository struct {
	Store *Store
}

func NewEventRepository(store *Store) *EventRepository {
	return &EventRepository{Store: store}
}

const eventColumns = `id, rule_id, tenant_id, threshold_tier, current_value, threshold_value, message, status, COALESCE(acknowledged_by, ''), triggered_at, updated_at`

// CreateIfNoneActive inserts the event unless an ACTIVE one already
// exists for the same (rule, tier). The second return value reports
// whether a row was created.
func (r *EventRepository) CreateIfNoneActive(ctx context.Context, event domain.Event) (domain.Event, bool, error) {
	event.ID = uuid.NewString()
	event.Status = domain.EventActive
	now := time.Now().UTC()
	event.TriggeredAt = now
	event.UpdatedAt = now
	tag, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO alert_events (id, rule_id, tenant_id, threshold_tier, current_value, threshold_value, message, status, triggered_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (rule_id, threshold_tier) WHERE status = 'ACTIVE' DO NOTHING`,
		event.ID, event.RuleID, event.TenantID, event.ThresholdTier, event.CurrentValue,
		event.ThresholdValue, event.Message, event.Status, event.TriggeredAt, event.UpdatedAt)
	if err != nil {
		return domain.Event{}, false, fmt.Errorf("create event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Event{}, false, nil
	}
	return event, true, nil
}

func (r *EventRepository) Get(ctx context.Context, id string) (domain.Event, error) {
	row := r.Store.Pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM alert_events WHERE id=$1`, id)
	return scanEvent(row)
}

func (r *EventRepository) List(ctx context.Context, tenantID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT `+eventColumns+` FROM alert_events
		WHERE tenant_id=$1 ORDER BY triggered_at DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	results := []domain.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, event)
	}
	return results, rows.Err()
}

// Acknowledge moves an ACTIVE event to ACKNOWLEDGED and records who
// acknowledged it.
func (r *EventRepository) Acknowledge(ctx context.Context, id, userID string) (domain.Event, error) {
	return r.transition(ctx, id, domain.EventActive, domain.EventAcknowledged, userID)
}

// Resolve closes an event. Both ACTIVE and ACKNOWLEDGED events can be
// resolved; resolution is manual only, the evaluator never does it.
func (r *EventRepository) Resolve(ctx context.Context, id string) (domain.Event, error) {
	tag, err := r.Store.Pool.Exec(ctx, `
		UPDATE alert_events SET status=$1, updated_at=now()
		WHERE id=$2 AND status IN ($3, $4)`,
		domain.EventResolved, id, domain.EventActive, domain.EventAcknowledged)
	if err != nil {
		return domain.Event{}, fmt.Errorf("resolve event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionFailure(ctx, id)
	}
	return r.Get(ctx, id)
}

func (r *EventRepository) transition(ctx context.Context, id, from, to, userID string) (domain.Event, error) {
	tag, err := r.Store.Pool.Exec(ctx, `
		UPDATE alert_events SET status=$1, acknowledged_by=$2, updated_at=now()
		WHERE id=$3 AND status=$4`, to, userID, id, from)
	if err != nil {
		return domain.Event{}, fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionFailure(ctx, id)
	}
	return r.Get(ctx, id)
}

// transitionFailure tells a missing event apart from one in the wrong
// state after a zero-row CAS update.
func (r *EventRepository) transitionFailure(ctx context.Context, id string) (domain.Event, error) {
	if _, err := r.Get(ctx, id); errors.Is(err, domain.ErrNotFound) {
		return domain.Event{}, domain.ErrNotFound
	}
	return domain.Event{}, domain.ErrInvalidState
}

func scanEvent(row pgx.Row) (domain.Event, error) {
	var event domain.Event
	err := row.Scan(&event.ID, &event.RuleID, &event.TenantID, &event.ThresholdTier,
		&event.CurrentValue, &event.ThresholdValue, &event.Message, &event.Status,
		&event.AcknowledgedBy, &event.TriggeredAt, &event.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, err
	}
	return event, nil
}
