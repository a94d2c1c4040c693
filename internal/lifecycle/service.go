// Package lifecycle provides deterministic start/stop ordering for the
// console's concurrently running activities: the in-process action
// simulator host, the Sampling Monitor, the Maintenance Scheduler, and the
// HTTP API server.
package lifecycle

import "context"

// Service represents a lifecycle-managed background component. Every
// long-running activity wired into cmd/consoled implements this so the
// manager can start and stop them deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// LifecycleService additionally exposes a readiness probe. Embeddable
// supplies a no-op Ready; the Manager itself never calls Ready.
type LifecycleService interface {
	Service
	Ready(ctx context.Context) error
}
