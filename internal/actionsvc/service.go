// Package actionsvc implements the Action Service: queues remediation
// plans, executes them one action at a time against the Action Simulator,
// defers them, and writes outcomes back to the knowledge store.
package actionsvc

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/incident-console/backend/internal/clients/simulator"
	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/pkg/apierrors"
	"github.com/incident-console/backend/pkg/logger"
	"github.com/incident-console/backend/pkg/metrics"
	"github.com/google/uuid"
)

const (
	healthProbeRetries = 20
	healthProbeDelay   = 250 * time.Millisecond
)

// Store is the subset of the state store this service needs.
type Store interface {
	QueueExecution(exec domain.ActionExecution)
	Execution(id string) (domain.ActionExecution, bool)
	UpdateExecution(exec domain.ActionExecution) bool
	AppendFeed(line string)
	OpenRecoveryCheck(check domain.RecoveryCheck)
}

// KnowledgeStore is the subset of the RAG store this service needs.
type KnowledgeStore interface {
	RecordExecuted(exec domain.ActionExecution) error
	RecordDeferred(exec domain.ActionExecution) error
}

// SimulatorClient is the subset of the simulator client this service needs.
type SimulatorClient interface {
	Execute(ctx context.Context, executionID, action string) (simulator.ExecuteResult, error)
	Healthy(ctx context.Context) bool
}

// NotificationSink is notified on every execution status transition.
type NotificationSink interface {
	Notify(ctx context.Context, exec domain.ActionExecution)
}

// Service implements the queue/execute/defer lifecycle for action plans.
type Service struct {
	store      Store
	knowledge  KnowledgeStore
	simulator  SimulatorClient
	sink       NotificationSink

	log *logger.Logger

	readyOnce sync.Once
	ready     bool
	readyMu   sync.Mutex
}

// New constructs an action Service.
func New(store Store, knowledgeStore KnowledgeStore, simulatorClient SimulatorClient, sink NotificationSink) *Service {
	return &Service{
		store:     store,
		knowledge: knowledgeStore,
		simulator: simulatorClient,
		sink:      sink,
		log:       logger.NewDefault("action-service"),
	}
}

// QueueFromReport creates and stores a pending ActionExecution for report
// if it has any non-empty, distinct actions. Returns false if there was
// nothing to queue.
func (s *Service) QueueFromReport(report domain.IncidentReport) (domain.ActionExecution, bool) {
	actions := distinctNonEmpty(report.ActionItems)
	if len(actions) == 0 {
		return domain.ActionExecution{}, false
	}

	exec := domain.ActionExecution{
		ID:            uuid.NewString(),
		ReportID:      report.ID,
		ScenarioCode:  report.ScenarioCode,
		ScenarioTitle: report.Title,
		CreatedAt:     time.Now().UTC(),
		Actions:       actions,
		Status:        domain.ExecutionPending,
	}
	s.store.QueueExecution(exec)
	s.store.AppendFeed("Queued action plan for " + report.Title)
	return exec, true
}

func distinctNonEmpty(items []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

// ensureSimulatorReady probes the simulator's health endpoint up to
// healthProbeRetries times, healthProbeDelay apart, and returns an error if
// it never reports healthy. It uses a double-checked pattern: the first
// caller probes; concurrent callers wait on the same readiness gate instead
// of each issuing their own probe loop.
func (s *Service) ensureSimulatorReady(ctx context.Context) error {
	s.readyMu.Lock()
	if s.ready {
		s.readyMu.Unlock()
		return nil
	}
	s.readyMu.Unlock()

	var probeErr error
	s.readyOnce.Do(func() {
		for attempt := 0; attempt < healthProbeRetries; attempt++ {
			if s.simulator.Healthy(ctx) {
				s.readyMu.Lock()
				s.ready = true
				s.readyMu.Unlock()
				return
			}
			time.Sleep(healthProbeDelay)
		}
		probeErr = apierrors.Upstream("action-simulator", context.DeadlineExceeded)
	})

	s.readyMu.Lock()
	ready := s.ready
	s.readyMu.Unlock()
	if !ready {
		if probeErr != nil {
			return probeErr
		}
		return apierrors.Upstream("action-simulator", context.DeadlineExceeded)
	}
	return nil
}

// ExecutePending dispatches every action in execution id's plan, one at a
// time, and marks it executed on success. Already-executed plans are
// returned unchanged (idempotent). Any simulator failure aborts the whole
// plan, leaving it pending.
func (s *Service) ExecutePending(ctx context.Context, id string) (domain.ActionExecution, error) {
	exec, ok := s.store.Execution(id)
	if !ok {
		return domain.ActionExecution{}, apierrors.BadRequestf("unknown action execution %q", id)
	}
	if exec.Status == domain.ExecutionExecuted {
		return exec, nil
	}

	if err := s.ensureSimulatorReady(ctx); err != nil {
		return domain.ActionExecution{}, apierrors.BadRequestf("action simulator is not reachable: %v", err)
	}

	results := make([]domain.ActionExecutionResult, 0, len(exec.Actions))
	for _, action := range exec.Actions {
		outcome, err := s.simulator.Execute(ctx, exec.ID, action)
		if err != nil {
			return domain.ActionExecution{}, apierrors.BadRequestf("action simulator rejected %q: %v", action, err)
		}
		results = append(results, domain.ActionExecutionResult{
			Action:     action,
			Status:     outcome.Status,
			Detail:     outcome.Detail,
			ExecutedAt: outcome.ExecutedAt,
		})
	}

	now := time.Now().UTC()
	exec.Status = domain.ExecutionExecuted
	exec.ExecutedAt = &now
	exec.Results = results
	s.store.UpdateExecution(exec)
	s.store.AppendFeed("Executed action plan for " + exec.ScenarioTitle)
	metrics.Global().ActionsExecutedTotal.WithLabelValues(exec.ScenarioCode).Inc()

	s.store.OpenRecoveryCheck(domain.RecoveryCheck{
		ExecutionID:   exec.ID,
		ScenarioCode:  exec.ScenarioCode,
		ScenarioTitle: exec.ScenarioTitle,
		StartedAt:     now,
		Status:        domain.RecoveryPending,
	})

	if s.knowledge != nil {
		if err := s.knowledge.RecordExecuted(exec); err != nil {
			s.log.WithError(err).Warn("failed to record executed action plan in knowledge store")
		}
	}
	if s.sink != nil {
		s.sink.Notify(ctx, exec)
	}

	return exec, nil
}

// DeferExecution marks execution id as deferred without dispatching
// anything. Already-executed plans are returned unchanged.
func (s *Service) DeferExecution(ctx context.Context, id string) (domain.ActionExecution, error) {
	exec, ok := s.store.Execution(id)
	if !ok {
		return domain.ActionExecution{}, apierrors.BadRequestf("unknown action execution %q", id)
	}
	if exec.Status == domain.ExecutionExecuted {
		return exec, nil
	}

	exec.Status = domain.ExecutionDeferred
	exec.ExecutedAt = nil
	exec.Results = nil
	s.store.UpdateExecution(exec)
	s.store.AppendFeed("Deferred action plan for " + exec.ScenarioTitle)
	metrics.Global().ActionsDeferredTotal.WithLabelValues(exec.ScenarioCode).Inc()

	if s.knowledge != nil {
		if err := s.knowledge.RecordDeferred(exec); err != nil {
			s.log.WithError(err).Warn("failed to record deferred action plan in knowledge store")
		}
	}
	if s.sink != nil {
		s.sink.Notify(ctx, exec)
	}

	return exec, nil
}
