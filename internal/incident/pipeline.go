// Package incident implements the Incident Pipeline: given a triggering
// sample and its matched scenario, it composes a report, queues a
// remediation plan, and dispatches notifications, recording any partial
// delivery failure instead of losing the incident.
package incident

import (
	"context"
	"time"

	"github.com/incident-console/backend/internal/clients/chat"
	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/internal/report"
	"github.com/incident-console/backend/internal/state"
	"github.com/incident-console/backend/pkg/logger"
	"github.com/incident-console/backend/pkg/metrics"
	"github.com/google/uuid"
)

// ReportGenerator is the subset of the report package this pipeline needs.
type ReportGenerator interface {
	Generate(ctx context.Context, scenario domain.AlertScenario, sample domain.MetricSample) report.Result
}

// ActionQueue is the subset of the action service this pipeline needs.
type ActionQueue interface {
	QueueFromReport(report domain.IncidentReport) (domain.ActionExecution, bool)
}

// Store is the subset of the state store this pipeline needs.
type Store interface {
	ChatSettings() state.ChatSettings
	Preferences() state.Preferences
	RecordReport(report domain.IncidentReport)
	AppendFeed(line string)
}

// KnowledgeStore is the subset of the RAG store this pipeline needs.
type KnowledgeStore interface {
	RecordReport(report domain.IncidentReport) error
}

// ChatClient is the subset of the chat client this pipeline needs.
type ChatClient interface {
	Post(ctx context.Context, token, channel, text string) (chat.Receipt, error)
}

// Pipeline composes and delivers incident reports.
type Pipeline struct {
	store     Store
	knowledge KnowledgeStore
	generator ReportGenerator
	actions   ActionQueue
	chat      ChatClient
	log       *logger.Logger
}

// New constructs an incident Pipeline.
func New(store Store, knowledgeStore KnowledgeStore, generator ReportGenerator, actions ActionQueue, chatClient ChatClient) *Pipeline {
	return &Pipeline{
		store:     store,
		knowledge: knowledgeStore,
		generator: generator,
		actions:   actions,
		chat:      chatClient,
		log:       logger.NewDefault("incident-pipeline"),
	}
}

// Trigger composes, queues, and delivers an incident report for scenario
// triggered by sample.
func (p *Pipeline) Trigger(ctx context.Context, scenario domain.AlertScenario, sample domain.MetricSample) domain.IncidentReport {
	result := p.generator.Generate(ctx, scenario, sample)

	actionItems := result.ActionPlan
	if len(actionItems) == 0 {
		actionItems = scenario.Actions
	}

	report := domain.IncidentReport{
		ID:           uuid.NewString(),
		ScenarioCode: scenario.Code,
		Title:        scenario.Title,
		CreatedAt:    time.Now().UTC(),
		Metrics:      sample.Clone(),
		Summary:      result.Summary,
		RootCause:    result.RootCause,
		Impact:       result.Impact,
		ActionItems:  actionItems,
		FollowUp:     result.FollowUp,
		ReportBody:   result.ReportBody,
	}

	p.actions.QueueFromReport(report)

	sent, missing := p.deliver(ctx, report)
	report.RecipientsSent = sent
	report.RecipientsMissing = missing

	p.store.RecordReport(report)
	p.store.AppendFeed("Detected incident: " + report.Title)
	metrics.Global().IncidentsDetectedTotal.WithLabelValues(report.ScenarioCode).Inc()

	if p.knowledge != nil {
		if err := p.knowledge.RecordReport(report); err != nil {
			p.log.WithError(err).Warn("failed to record incident report in knowledge store")
		}
	}

	return report
}

func (p *Pipeline) deliver(ctx context.Context, report domain.IncidentReport) (sent []string, missing []string) {
	prefs := p.store.Preferences()
	if !prefs.ChatEnabled {
		return nil, []string{"chat: disabled by preference"}
	}

	chatSettings := p.store.ChatSettings()
	if !chatSettings.Configured() {
		return nil, []string{"chat: not configured"}
	}

	if _, err := p.chat.Post(ctx, chatSettings.Token, chatSettings.Channel, report.ReportBody); err != nil {
		return nil, []string{"chat: " + err.Error()}
	}
	return []string{"chat"}, nil
}
