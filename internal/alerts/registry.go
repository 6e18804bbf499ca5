package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry runs the periodic evaluation loop: one ticker per tenant
// feeding a bounded queue that a fixed pool of workers drains. Double
// scheduling a tenant replaces its ticker, so a reconcile pass is
// always safe.
type Registry struct {
	mu          sync.Mutex
	jobs        map[string]*job
	queue       chan string
	workers     int
	evaluator   *Evaluator
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	passTimeout time.Duration
}

type job struct {
	tenantID string
	interval time.Duration
	stop     chan struct{}
}

type JobInfo struct {
	TenantID        string `json:"tenantId"`
	IntervalSeconds int    `json:"intervalSeconds"`
}

func NewRegistry(evaluator *Evaluator, logger *slog.Logger, workers int, passTimeout time.Duration) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	reg := &Registry{
		jobs:        map[string]*job{},
		queue:       make(chan string, 128),
		workers:     workers,
		evaluator:   evaluator,
		log:         logger,
		ctx:         ctx,
		cancel:      cancel,
		passTimeout: passTimeout,
	}
	for i := 0; i < workers; i++ {
		go reg.worker()
	}
	return reg
}

func (r *Registry) Stop() {
	r.cancel()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		close(j.stop)
	}
	r.jobs = map[string]*job{}
}

func (r *Registry) Schedule(tenantID string, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.jobs[tenantID]; ok {
		close(existing.stop)
	}
	j := &job{tenantID: tenantID, interval: interval, stop: make(chan struct{})}
	r.jobs[tenantID] = j
	go r.runTicker(j)
}

func (r *Registry) Unschedule(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[tenantID]; ok {
		close(j.stop)
		delete(r.jobs, tenantID)
	}
}

func (r *Registry) ListJobs() []JobInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]JobInfo, 0, len(r.jobs))
	for id, j := range r.jobs {
		jobs = append(jobs, JobInfo{TenantID: id, IntervalSeconds: int(j.interval / time.Second)})
	}
	return jobs
}

func (r *Registry) runTicker(j *job) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case r.queue <- j.tenantID:
			default:
				r.log.Warn("evaluation queue full, skipping tick", slog.String("tenant_id", j.tenantID))
			}
		case <-j.stop:
			return
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Registry) worker() {
	for {
		select {
		case tenantID := <-r.queue:
			r.runPass(tenantID)
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Registry) runPass(tenantID string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.passTimeout)
	defer cancel()
	events, err := r.evaluator.Evaluate(ctx, tenantID)
	if err != nil {
		r.log.Error("evaluation pass failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()))
		return
	}
	if len(events) > 0 {
		r.log.Info("evaluation pass triggered events",
			slog.String("tenant_id", tenantID),
			slog.Int("count", len(events)))
	}
}
