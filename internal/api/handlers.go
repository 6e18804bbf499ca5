package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cloudgov-backend/internal/domain"
)

// RuleStore is the rule CRUD surface the handlers need.
type RuleStore interface {
	Create(ctx context.Context, rule domain.Rule) (domain.Rule, error)
	Update(ctx context.Context, rule domain.Rule) (domain.Rule, error)
	Get(ctx context.Context, id string) (domain.Rule, error)
	Delete(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	List(ctx context.Context, tenantID string) ([]domain.Rule, error)
}

// EventStore is the event surface the handlers need.
type EventStore interface {
	List(ctx context.Context, tenantID string, limit int) ([]domain.Event, error)
	Acknowledge(ctx context.Context, id, userID string) (domain.Event, error)
	Resolve(ctx context.Context, id string) (domain.Event, error)
}

// Evaluator runs one on-demand evaluation pass.
type Evaluator interface {
	Evaluate(ctx context.Context, tenantID string) ([]domain.Event, error)
}

// Publisher emits rule lifecycle events for the worker.
type Publisher interface {
	Publish(subject string, payload any) error
}

type Handler struct {
	Rules     RuleStore
	Events    EventStore
	Evaluator Evaluator
	Grants    GrantService
	Roles     RoleStore
	Bus       Publisher
	Log       *slog.Logger
	Timeout   time.Duration
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/rules", func(r chi.Router) {
		r.Post("/", h.handleRuleCreate)
		r.Get("/", h.handleRuleList)
		r.Get("/{id}", h.handleRuleGet)
		r.Put("/{id}", h.handleRuleUpdate)
		r.Delete("/{id}", h.handleRuleDelete)
		r.Post("/{id}/enable", h.handleRuleEnable)
		r.Post("/{id}/disable", h.handleRuleDisable)
	})
	r.Route("/alerts", func(r chi.Router) {
		r.Post("/evaluate", h.handleEvaluate)
		r.Get("/events", h.handleEventList)
		r.Post("/events/{id}/ack", h.handleEventAck)
		r.Post("/events/{id}/resolve", h.handleEventResolve)
	})
	h.registerRBACRoutes(r)
}

type ruleRequest struct {
	TenantID   string               `json:"tenantId"`
	Name       string               `json:"name"`
	MetricType string               `json:"metricType"`
	Scope      string               `json:"scope"`
	Thresholds []float64            `json:"thresholds"`
	Operator   string               `json:"operator"`
	Channels   []domain.Channel     `json:"channels"`
	Budget     *domain.BudgetConfig `json:"budget"`
	Enabled    *bool                `json:"enabled"`
}

func (req ruleRequest) toRule() domain.Rule {
	rule := domain.Rule{
		TenantID:   req.TenantID,
		Name:       req.Name,
		MetricType: req.MetricType,
		Scope:      req.Scope,
		Thresholds: req.Thresholds,
		Operator:   req.Operator,
		Channels:   req.Channels,
		Budget:     req.Budget,
		Enabled:    true,
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	return rule
}

func (h *Handler) handleRuleCreate(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	rule := req.toRule()
	if err := domain.ValidateRule(rule); err != nil {
		h.writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	created, err := h.Rules.Create(ctx, rule)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = h.Bus.Publish("rule.created", map[string]any{"rule_id": created.ID, "tenant_id": created.TenantID})
	writeJSON(w, http.StatusOK, created)
}

func (h *Handler) handleRuleList(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "tenantId is required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	rules, err := h.Rules.List(ctx, tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *Handler) handleRuleGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	rule, err := h.Rules.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *Handler) handleRuleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	existing, err := h.Rules.Get(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rule := req.toRule()
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt
	if rule.TenantID == "" {
		rule.TenantID = existing.TenantID
	}
	// An update that says nothing about enabled keeps the current
	// state instead of re-enabling a disabled rule.
	if req.Enabled == nil {
		rule.Enabled = existing.Enabled
	}
	if err := domain.ValidateRule(rule); err != nil {
		h.writeError(w, err)
		return
	}
	updated, err := h.Rules.Update(ctx, rule)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = h.Bus.Publish("rule.updated", map[string]any{"rule_id": id, "tenant_id": updated.TenantID})
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleRuleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	rule, err := h.Rules.Get(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Rules.Delete(ctx, id); err != nil {
		h.writeError(w, err)
		return
	}
	_ = h.Bus.Publish("rule.deleted", map[string]any{"rule_id": id, "tenant_id": rule.TenantID})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleRuleEnable(w http.ResponseWriter, r *http.Request) {
	h.setRuleEnabled(w, r, true, "rule.enabled")
}

func (h *Handler) handleRuleDisable(w http.ResponseWriter, r *http.Request) {
	h.setRuleEnabled(w, r, false, "rule.disabled")
}

func (h *Handler) setRuleEnabled(w http.ResponseWriter, r *http.Request, enabled bool, subject string) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	if err := h.Rules.SetEnabled(ctx, id, enabled); err != nil {
		h.writeError(w, err)
		return
	}
	_ = h.Bus.Publish(subject, map[string]any{"rule_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID string `json:"tenantId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	if req.TenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "tenantId is required"})
		return
	}
	events, err := h.Evaluator.Evaluate(r.Context(), req.TenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleEventList(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "tenantId is required"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	events, err := h.Events.List(ctx, tenantID, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleEventAck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "userId is required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	event, err := h.Events.Acknowledge(ctx, chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *Handler) handleEventResolve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	event, err := h.Events.Resolve(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// writeError maps the domain taxonomy onto status codes: bad input is
// 400, unknown ids 404, disallowed transitions 409, the rest 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": validation.Message, "details": validation.Details})
		return
	}
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "message": "not found"})
	case errors.Is(err, domain.ErrInvalidState):
		writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "message": "invalid state for requested transition"})
	default:
		h.Log.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": "internal error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
