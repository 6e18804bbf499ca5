package metrics

import (
	"context"
	"fmt"
	"math/rand"
)

// Source supplies the current value for a rule's metric. It is treated
// as slow and unreliable; the evaluator bounds every read with a
// timeout and recovers per rule.
type Source interface {
	Read(ctx context.Context, tenantID, metricType, scope string) (float64, error)
}

// Router fans reads out to per-metric sources.
type Router struct {
	sources map[string]Source
}

func NewRouter(sources map[string]Source) *Router {
	return &Router{sources: sources}
}

func (r *Router) Read(ctx context.Context, tenantID, metricType, scope string) (float64, error) {
	src, ok := r.sources[metricType]
	if !ok {
		return 0, fmt.Errorf("no metric source for %s", metricType)
	}
	return src.Read(ctx, tenantID, metricType, scope)
}

// Utilization stands in for CPU/MEMORY/DISK, where the platform has no
// real collector and the upstream connectors return mock percentages.
// A metric with a pinned value returns it; anything else gets a random
// percentage, like the connectors do.
type Utilization struct {
	Values map[string]float64
}

func (u Utilization) Read(ctx context.Context, tenantID, metricType, scope string) (float64, error) {
	if value, ok := u.Values[metricType]; ok {
		return value, nil
	}
	return rand.Float64() * 100, nil
}
