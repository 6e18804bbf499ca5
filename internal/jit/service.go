package jit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloudgov-backend/internal/domain"
)

// Store is the grant persistence the state machine runs on. Approve
// and Expire are atomic at the storage layer: the status swap and the
// role assignment (or its revocation) commit together or not at all,
// and a caller that loses the PENDING race gets ErrInvalidState.
type Store interface {
	CreateRequest(ctx context.Context, grant domain.AccessGrant) (domain.AccessGrant, error)
	GetRequest(ctx context.Context, id string) (domain.AccessGrant, error)
	ListRequests(ctx context.Context, tenantID string) ([]domain.AccessGrant, error)
	ApproveRequest(ctx context.Context, id, approverID string, now time.Time) (domain.AccessGrant, error)
	RejectRequest(ctx context.Context, id, approverID string) (domain.AccessGrant, error)
	ListExpired(ctx context.Context, now time.Time) ([]domain.AccessGrant, error)
	ExpireGrant(ctx context.Context, id string) (bool, error)
}

// Service drives the grant lifecycle:
// PENDING -> APPROVED | REJECTED, APPROVED -> EXPIRED (sweep only).
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, log: logger, now: time.Now}
}

func (s *Service) Request(ctx context.Context, tenantID, userID, roleID, justification string, durationMinutes int) (domain.AccessGrant, error) {
	if tenantID == "" || userID == "" || roleID == "" {
		return domain.AccessGrant{}, fmt.Errorf("%w: tenant, user and role are required", domain.ErrInvalidArgument)
	}
	if durationMinutes <= 0 {
		return domain.AccessGrant{}, fmt.Errorf("%w: durationMinutes must be positive", domain.ErrInvalidArgument)
	}
	grant, err := s.store.CreateRequest(ctx, domain.AccessGrant{
		TenantID:        tenantID,
		UserID:          userID,
		RequestedRoleID: roleID,
		Justification:   justification,
		DurationMinutes: durationMinutes,
	})
	if err != nil {
		return domain.AccessGrant{}, err
	}
	s.log.Info("jit access requested",
		slog.String("request_id", grant.ID),
		slog.String("tenant_id", tenantID),
		slog.String("user_id", userID),
		slog.Int("duration_minutes", durationMinutes))
	return grant, nil
}

// Approve grants the requested role for the request's duration. Only a
// PENDING request can be approved; a second approval loses the CAS and
// does not grant again.
func (s *Service) Approve(ctx context.Context, requestID, approverID string) (domain.AccessGrant, error) {
	if approverID == "" {
		return domain.AccessGrant{}, fmt.Errorf("%w: approver is required", domain.ErrInvalidArgument)
	}
	grant, err := s.store.ApproveRequest(ctx, requestID, approverID, s.now())
	if err != nil {
		return domain.AccessGrant{}, err
	}
	s.log.Info("jit access approved",
		slog.String("request_id", grant.ID),
		slog.String("approver_id", approverID),
		slog.Time("expires_at", *grant.ExpiresAt))
	return grant, nil
}

func (s *Service) Reject(ctx context.Context, requestID, approverID string) (domain.AccessGrant, error) {
	if approverID == "" {
		return domain.AccessGrant{}, fmt.Errorf("%w: approver is required", domain.ErrInvalidArgument)
	}
	grant, err := s.store.RejectRequest(ctx, requestID, approverID)
	if err != nil {
		return domain.AccessGrant{}, err
	}
	s.log.Info("jit access rejected",
		slog.String("request_id", grant.ID),
		slog.String("approver_id", approverID))
	return grant, nil
}

func (s *Service) Get(ctx context.Context, requestID string) (domain.AccessGrant, error) {
	return s.store.GetRequest(ctx, requestID)
}

func (s *Service) List(ctx context.Context, tenantID string) ([]domain.AccessGrant, error) {
	return s.store.ListRequests(ctx, tenantID)
}
