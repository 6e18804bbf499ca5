package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cloudgov-backend/internal/domain"
)

// GrantService is the JIT state machine surface.
type GrantService interface {
	Request(ctx context.Context, tenantID, userID, roleID, justification string, durationMinutes int) (domain.AccessGrant, error)
	Approve(ctx context.Context, requestID, approverID string) (domain.AccessGrant, error)
	Reject(ctx context.Context, requestID, approverID string) (domain.AccessGrant, error)
	Get(ctx context.Context, requestID string) (domain.AccessGrant, error)
	List(ctx context.Context, tenantID string) ([]domain.AccessGrant, error)
}

// RoleStore covers roles, direct assignments and permission lookups.
type RoleStore interface {
	CreateRole(ctx context.Context, role domain.Role) (domain.Role, error)
	AssignRole(ctx context.Context, tenantID, userID, roleID string) (domain.RoleAssignment, error)
	Permissions(ctx context.Context, tenantID, userID string) ([]string, error)
}

func (h *Handler) registerRBACRoutes(r chi.Router) {
	r.Route("/rbac", func(r chi.Router) {
		r.Post("/roles", h.handleRoleCreate)
		r.Post("/assign", h.handleRoleAssign)
		r.Get("/permissions", h.handlePermissions)
		r.Route("/jit/requests", func(r chi.Router) {
			r.Post("/", h.handleJITRequest)
			r.Get("/", h.handleJITList)
			r.Get("/{id}", h.handleJITGet)
			r.Post("/{id}/approve", h.handleJITApprove)
			r.Post("/{id}/reject", h.handleJITReject)
		})
	})
}

func (h *Handler) handleRoleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID    string   `json:"tenantId"`
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	if req.TenantID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "tenantId and name are required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	role, err := h.Roles.CreateRole(ctx, domain.Role{TenantID: req.TenantID, Name: req.Name, Permissions: req.Permissions})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *Handler) handleRoleAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID string `json:"tenantId"`
		UserID   string `json:"userId"`
		RoleID   string `json:"roleId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	if req.TenantID == "" || req.UserID == "" || req.RoleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "tenantId, userId and roleId are required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	assignment, err := h.Roles.AssignRole(ctx, req.TenantID, req.UserID, req.RoleID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	userID := r.URL.Query().Get("userId")
	if tenantID == "" || userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "tenantId and userId are required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	perms, err := h.Roles.Permissions(ctx, tenantID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

func (h *Handler) handleJITRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID        string `json:"tenantId"`
		UserID          string `json:"userId"`
		RoleID          string `json:"roleId"`
		Justification   string `json:"justification"`
		DurationMinutes int    `json:"durationMinutes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	grant, err := h.Grants.Request(ctx, req.TenantID, req.UserID, req.RoleID, req.Justification, req.DurationMinutes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (h *Handler) handleJITList(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "tenantId is required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	grants, err := h.Grants.List(ctx, tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

func (h *Handler) handleJITGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	grant, err := h.Grants.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (h *Handler) handleJITApprove(w http.ResponseWriter, r *http.Request) {
	h.handleJITDecision(w, r, true)
}

func (h *Handler) handleJITReject(w http.ResponseWriter, r *http.Request) {
	h.handleJITDecision(w, r, false)
}

func (h *Handler) handleJITDecision(w http.ResponseWriter, r *http.Request, approve bool) {
	var req struct {
		ApproverID string `json:"approverId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	id := chi.URLParam(r, "id")
	var (
		grant domain.AccessGrant
		err   error
	)
	if approve {
		grant, err = h.Grants.Approve(ctx, id, req.ApproverID)
	} else {
		grant, err = h.Grants.Reject(ctx, id, req.ApproverID)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}
