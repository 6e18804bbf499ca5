package jit

import (
	"context"
	"testing"
	"time"

	"cloudgov-backend/internal/domain"
)

func TestSweepExpiresPastDueGrants(t *testing.T) {
	store := newMemStore()
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, func() time.Time { return base })

	short, _ := svc.Request(context.Background(), "tenant-1", "user-1", "role-admin", "", 30)
	long, _ := svc.Request(context.Background(), "tenant-1", "user-2", "role-admin", "", 240)
	if _, err := svc.Approve(context.Background(), short.ID, "approver-1"); err != nil {
		t.Fatalf("approve short: %v", err)
	}
	if _, err := svc.Approve(context.Background(), long.ID, "approver-1"); err != nil {
		t.Fatalf("approve long: %v", err)
	}

	sweeper := NewSweeper(store, quietLogger(), time.Minute)
	sweeper.now = func() time.Time { return base.Add(time.Hour) }

	if got := sweeper.SweepOnce(context.Background()); got != 1 {
		t.Fatalf("expected 1 expired grant, got %d", got)
	}
	swept, _ := store.GetRequest(context.Background(), short.ID)
	if swept.Status != domain.GrantExpired {
		t.Fatalf("expected EXPIRED, got %s", swept.Status)
	}
	if store.assignmentCount(short.ID) != 0 {
		t.Fatalf("expiry must revoke the assignment")
	}
	kept, _ := store.GetRequest(context.Background(), long.ID)
	if kept.Status != domain.GrantApproved {
		t.Fatalf("a grant still inside its window must stay APPROVED, got %s", kept.Status)
	}
	if store.assignmentCount(long.ID) != 1 {
		t.Fatalf("a live grant must keep its assignment")
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	store := newMemStore()
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, func() time.Time { return base })

	grant, _ := svc.Request(context.Background(), "tenant-1", "user-1", "role-admin", "", 15)
	if _, err := svc.Approve(context.Background(), grant.ID, "approver-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	sweeper := NewSweeper(store, quietLogger(), time.Minute)
	sweeper.now = func() time.Time { return base.Add(time.Hour) }

	if got := sweeper.SweepOnce(context.Background()); got != 1 {
		t.Fatalf("first sweep: expected 1, got %d", got)
	}
	if got := sweeper.SweepOnce(context.Background()); got != 0 {
		t.Fatalf("second sweep: expected 0, got %d", got)
	}
	if store.assignmentCount(grant.ID) != 0 {
		t.Fatalf("repeated sweeps must revoke at most once, count=%d", store.assignmentCount(grant.ID))
	}
}

func TestSweepSkipsGrantsExactlyAtBoundaryRace(t *testing.T) {
	store := newMemStore()
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, func() time.Time { return base })

	grant, _ := svc.Request(context.Background(), "tenant-1", "user-1", "role-admin", "", 30)
	if _, err := svc.Approve(context.Background(), grant.ID, "approver-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Another sweeper already expired the grant between ListExpired
	// and ExpireGrant. The CAS loses and the pass counts nothing.
	if _, err := store.ExpireGrant(context.Background(), grant.ID); err != nil {
		t.Fatalf("pre-expire: %v", err)
	}
	sweeper := NewSweeper(store, quietLogger(), time.Minute)
	sweeper.now = func() time.Time { return base.Add(time.Hour) }
	if got := sweeper.SweepOnce(context.Background()); got != 0 {
		t.Fatalf("expected 0 after losing the race, got %d", got)
	}
}
