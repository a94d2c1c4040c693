// Package monitor implements the Sampling Monitor: a periodic poller that
// maintains the rolling sample window, detects per-scenario threshold
// breaches, opens incidents on transition into breach, and resolves
// recovery checks once the window clears.
package monitor

import (
	"context"
	"sort"
	"time"

	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/internal/state"
	"github.com/incident-console/backend/pkg/logger"
	"github.com/incident-console/backend/pkg/metrics"
)

// MetricsClient is the subset of the metrics client this monitor needs.
type MetricsClient interface {
	InstantValue(ctx context.Context, baseURL, query string) (float64, error)
}

// Store is the subset of the state store this monitor needs.
type Store interface {
	MetricsSettings() state.MetricsSettings
	ScenarioByCode(code string) (domain.AlertScenario, bool)
	PushSample(sample domain.MetricSample) []domain.MetricSample
	WindowFull() bool
	ActiveIncidents() map[string]bool
	ActivateIncident(code string) bool
	DeactivateIncident(code string)
	AppendFeed(line string)
	ResolvePendingRecoveryChecks(resolvedAt time.Time) []domain.RecoveryCheck
}

// IncidentTrigger is the subset of the incident pipeline this monitor needs.
type IncidentTrigger interface {
	Trigger(ctx context.Context, scenario domain.AlertScenario, sample domain.MetricSample) domain.IncidentReport
}

// KnowledgeStore is the subset of the RAG store this monitor needs.
type KnowledgeStore interface {
	MarkRecovery(executionID, status string, resolvedAt time.Time, metrics domain.MetricSample) (bool, error)
}

// Monitor is the background Sampling Monitor activity.
type Monitor struct {
	store     Store
	metrics   MetricsClient
	pipeline  IncidentTrigger
	knowledge KnowledgeStore
	interval  time.Duration
	log       *logger.Logger

	stopCh chan struct{}
}

// New constructs a Monitor polling every interval.
func New(store Store, metricsClient MetricsClient, pipeline IncidentTrigger, knowledgeStore KnowledgeStore, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		store:     store,
		metrics:   metricsClient,
		pipeline:  pipeline,
		knowledge: knowledgeStore,
		interval:  interval,
		log:       logger.NewDefault("sampling-monitor"),
		stopCh:    make(chan struct{}),
	}
}

// Name identifies this activity to the lifecycle manager.
func (m *Monitor) Name() string { return "sampling-monitor" }

// Start launches the polling loop in the background and returns
// immediately.
func (m *Monitor) Start(ctx context.Context) error {
	go m.run(ctx)
	return nil
}

// Stop signals the loop to exit after completing its current tick.
func (m *Monitor) Stop(ctx context.Context) error {
	close(m.stopCh)
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.Global().MonitorTickDuration.Observe(time.Since(start).Seconds())
	}()

	settings := m.store.MetricsSettings()
	if !settings.Configured() {
		return
	}

	httpValue, err := m.metrics.InstantValue(ctx, settings.URL, settings.HTTPQuery)
	if err != nil {
		m.store.AppendFeed("Metrics fetch failed: " + err.Error())
		metrics.Global().MonitorTickFailures.WithLabelValues("metrics_fetch").Inc()
		return
	}
	cpuValue, err := m.metrics.InstantValue(ctx, settings.URL, settings.CPUQuery)
	if err != nil {
		m.store.AppendFeed("Metrics fetch failed: " + err.Error())
		metrics.Global().MonitorTickFailures.WithLabelValues("metrics_fetch").Inc()
		return
	}

	sample := domain.MetricSample{
		Timestamp:     time.Now().UTC(),
		HTTP:          httpValue,
		HTTPThreshold: settings.HTTPThreshold,
		CPU:           cpuValue,
		CPUThreshold:  settings.CPUThreshold,
	}

	window := m.store.PushSample(sample)
	if !m.store.WindowFull() {
		return
	}

	httpBreach := anyExceeds(window, domain.MetricSample.HTTPExceeded)
	cpuBreach := anyExceeds(window, domain.MetricSample.CPUExceeded)

	breachSet := make(map[string]bool)
	if httpBreach {
		breachSet[domain.ScenarioHTTP5xxSurge] = true
	}
	if cpuBreach {
		breachSet[domain.ScenarioCPUSpikeCore] = true
	}

	active := m.store.ActiveIncidents()

	newlyBreached := codesIn(breachSet, active)
	sort.Strings(newlyBreached)
	for _, code := range orderedByTieBreak(newlyBreached, window) {
		if !m.store.ActivateIncident(code) {
			continue
		}
		scenario, ok := m.store.ScenarioByCode(code)
		if !ok {
			continue
		}
		representative := representativeSample(window, code)
		m.pipeline.Trigger(ctx, scenario, representative)
	}

	for code := range active {
		if !breachSet[code] {
			m.store.DeactivateIncident(code)
		}
	}

	if len(breachSet) == 0 {
		resolvedAt := window[len(window)-1].Timestamp
		changed := m.store.ResolvePendingRecoveryChecks(resolvedAt)
		for _, check := range changed {
			m.store.AppendFeed("Recovered: " + check.ScenarioTitle)
			metrics.Global().IncidentsRecoveredTotal.WithLabelValues(check.ScenarioCode).Inc()
			if m.knowledge != nil {
				if _, err := m.knowledge.MarkRecovery(check.ExecutionID, domain.DocRecoveryRecovered, resolvedAt, window[len(window)-1]); err != nil {
					m.log.WithError(err).Warn("failed to mark recovery in knowledge store")
				}
			}
		}
	}
}

func anyExceeds(window []domain.MetricSample, pred func(domain.MetricSample) bool) bool {
	for _, s := range window {
		if pred(s) {
			return true
		}
	}
	return false
}

func codesIn(breach, active map[string]bool) []string {
	var out []string
	for code := range breach {
		if !active[code] {
			out = append(out, code)
		}
	}
	return out
}

// orderedByTieBreak sorts codes so that, when both cause codes trigger on
// the same tick, the one with the larger positive delta from its threshold
// is processed first; ties favor http_5xx_surge.
func orderedByTieBreak(codes []string, window []domain.MetricSample) []string {
	if len(codes) < 2 {
		return codes
	}
	latest := window[len(window)-1]
	httpDelta := latest.HTTPDelta()
	cpuDelta := latest.CPUDelta()

	sort.Slice(codes, func(i, j int) bool {
		return deltaFor(codes[i], httpDelta, cpuDelta) >= deltaFor(codes[j], httpDelta, cpuDelta)
	})
	return codes
}

func deltaFor(code string, httpDelta, cpuDelta float64) float64 {
	switch code {
	case domain.ScenarioHTTP5xxSurge:
		return httpDelta
	case domain.ScenarioCPUSpikeCore:
		return cpuDelta - 1e-9 // break exact ties in favor of http_5xx_surge
	default:
		return -1
	}
}

// representativeSample picks the most recent sample in window that
// exceeded the metric relevant to code, falling back to the latest sample.
func representativeSample(window []domain.MetricSample, code string) domain.MetricSample {
	for i := len(window) - 1; i >= 0; i-- {
		s := window[i]
		if code == domain.ScenarioHTTP5xxSurge && s.HTTPExceeded() {
			return s
		}
		if code == domain.ScenarioCPUSpikeCore && s.CPUExceeded() {
			return s
		}
	}
	return window[len(window)-1]
}
