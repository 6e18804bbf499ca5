package jit

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper expires APPROVED grants past their expiry and revokes the
// role assignments they created. Each grant is expired by a storage
// CAS, so rerunning a sweep (or two sweepers racing) revokes at most
// once.
type Sweeper struct {
	store    Store
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(store Store, logger *slog.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{store: store, log: logger, interval: interval, now: time.Now}
}

// Run ticks until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce expires everything currently past expiry and returns how
// many grants this pass expired. Individual failures are logged and
// the pass continues.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	now := s.now()
	expired, err := s.store.ListExpired(ctx, now)
	if err != nil {
		s.log.Error("listing expired grants failed", slog.String("error", err.Error()))
		return 0
	}
	count := 0
	for _, grant := range expired {
		swept, err := s.store.ExpireGrant(ctx, grant.ID)
		if err != nil {
			s.log.Error("expiring grant failed",
				slog.String("request_id", grant.ID),
				slog.String("error", err.Error()))
			continue
		}
		if swept {
			count++
			s.log.Info("jit grant expired",
				slog.String("request_id", grant.ID),
				slog.String("user_id", grant.UserID),
				slog.String("role_id", grant.RequestedRoleID))
		}
	}
	return count
}
