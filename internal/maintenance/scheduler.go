// Package maintenance implements the Maintenance Scheduler: a cron-driven
// housekeeping job, outside the incident-detection hot path, that prunes
// long-resolved recovery checks and refreshes the knowledge-store document
// gauge.
package maintenance

import (
	"context"
	"time"

	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/pkg/logger"
	"github.com/incident-console/backend/pkg/metrics"
	"github.com/robfig/cron/v3"
)

const recoveryCheckRetention = 24 * time.Hour

// Store is the subset of the state store this scheduler needs.
type Store interface {
	PruneResolvedRecoveryChecks(olderThan time.Time) int
}

// KnowledgeStore is the subset of the RAG store this scheduler needs.
type KnowledgeStore interface {
	Documents() []domain.KnowledgeDocument
}

// Scheduler runs the periodic housekeeping job.
type Scheduler struct {
	store     Store
	knowledge KnowledgeStore
	cron      *cron.Cron
	log       *logger.Logger
}

// New constructs a Scheduler that runs its job every minute once started.
func New(store Store, knowledgeStore KnowledgeStore) *Scheduler {
	return &Scheduler{
		store:     store,
		knowledge: knowledgeStore,
		cron:      cron.New(),
		log:       logger.NewDefault("maintenance-scheduler"),
	}
}

// Name identifies this activity to the lifecycle manager.
func (s *Scheduler) Name() string { return "maintenance-scheduler" }

// Start registers the housekeeping job and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc("@every 1m", s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron runner, waiting for any in-flight job to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	return nil
}

func (s *Scheduler) runOnce() {
	dropped := s.store.PruneResolvedRecoveryChecks(time.Now().UTC().Add(-recoveryCheckRetention))
	if dropped > 0 {
		s.log.WithField("dropped", dropped).Debug("pruned resolved recovery checks")
	}

	docs := s.knowledge.Documents()
	metrics.Global().KnowledgeDocumentsTotal.Set(float64(len(docs)))
}
