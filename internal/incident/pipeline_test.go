package incident

import (
	"context"
	"errors"
	"testing"

	"github.com/incident-console/backend/internal/clients/chat"
	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/internal/report"
	"github.com/incident-console/backend/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	result report.Result
}

func (f fakeGenerator) Generate(ctx context.Context, scenario domain.AlertScenario, sample domain.MetricSample) report.Result {
	return f.result
}

type fakeQueue struct {
	queued []domain.IncidentReport
}

func (f *fakeQueue) QueueFromReport(report domain.IncidentReport) (domain.ActionExecution, bool) {
	f.queued = append(f.queued, report)
	return domain.ActionExecution{}, len(report.ActionItems) > 0
}

type fakeStore struct {
	chatSettings state.ChatSettings
	preferences  state.Preferences
	recorded     []domain.IncidentReport
	feed         []string
}

func (f *fakeStore) ChatSettings() state.ChatSettings { return f.chatSettings }
func (f *fakeStore) Preferences() state.Preferences   { return f.preferences }
func (f *fakeStore) RecordReport(report domain.IncidentReport) {
	f.recorded = append(f.recorded, report)
}
func (f *fakeStore) AppendFeed(line string) { f.feed = append(f.feed, line) }

type fakeKnowledge struct {
	recorded []domain.IncidentReport
}

func (f *fakeKnowledge) RecordReport(report domain.IncidentReport) error {
	f.recorded = append(f.recorded, report)
	return nil
}

type fakeChat struct {
	err error
}

func (f fakeChat) Post(ctx context.Context, token, channel, text string) (chat.Receipt, error) {
	if f.err != nil {
		return chat.Receipt{}, f.err
	}
	return chat.Receipt{Channel: channel}, nil
}

func testScenario() domain.AlertScenario {
	return domain.SeedScenarios()[0]
}

func TestTriggerRecordsSentWhenChatSucceeds(t *testing.T) {
	store := &fakeStore{
		chatSettings: state.ChatSettings{Token: "tok", Channel: "#ops"},
		preferences:  state.Preferences{ChatEnabled: true},
	}
	knowledgeStore := &fakeKnowledge{}
	pipeline := New(store, knowledgeStore, fakeGenerator{result: report.Result{Summary: "s", ActionPlan: []string{"restart"}}}, &fakeQueue{}, fakeChat{})

	got := pipeline.Trigger(context.Background(), testScenario(), domain.MetricSample{})
	assert.Equal(t, []string{"chat"}, got.RecipientsSent)
	assert.Empty(t, got.RecipientsMissing)
	require.Len(t, store.recorded, 1)
	require.Len(t, knowledgeStore.recorded, 1)
}

func TestTriggerRecordsMissingWhenChatDisabled(t *testing.T) {
	store := &fakeStore{preferences: state.Preferences{ChatEnabled: false}}
	pipeline := New(store, &fakeKnowledge{}, fakeGenerator{result: report.Result{}}, &fakeQueue{}, fakeChat{})

	got := pipeline.Trigger(context.Background(), testScenario(), domain.MetricSample{})
	assert.Empty(t, got.RecipientsSent)
	assert.Equal(t, []string{"chat: disabled by preference"}, got.RecipientsMissing)
}

func TestTriggerRecordsMissingWhenChatNotConfigured(t *testing.T) {
	store := &fakeStore{preferences: state.Preferences{ChatEnabled: true}}
	pipeline := New(store, &fakeKnowledge{}, fakeGenerator{result: report.Result{}}, &fakeQueue{}, fakeChat{})

	got := pipeline.Trigger(context.Background(), testScenario(), domain.MetricSample{})
	assert.Equal(t, []string{"chat: not configured"}, got.RecipientsMissing)
}

func TestTriggerRecordsMissingOnChatDeliveryFailure(t *testing.T) {
	store := &fakeStore{
		chatSettings: state.ChatSettings{Token: "tok", Channel: "#ops"},
		preferences:  state.Preferences{ChatEnabled: true},
	}
	pipeline := New(store, &fakeKnowledge{}, fakeGenerator{result: report.Result{}}, &fakeQueue{}, fakeChat{err: errors.New("rate limited")})

	got := pipeline.Trigger(context.Background(), testScenario(), domain.MetricSample{})
	assert.Empty(t, got.RecipientsSent)
	require.Len(t, got.RecipientsMissing, 1)
	assert.Contains(t, got.RecipientsMissing[0], "rate limited")
}

func TestTriggerFallsBackToScenarioActionsWhenPlanEmpty(t *testing.T) {
	store := &fakeStore{preferences: state.Preferences{ChatEnabled: true}, chatSettings: state.ChatSettings{Token: "t", Channel: "c"}}
	scenario := testScenario()
	pipeline := New(store, &fakeKnowledge{}, fakeGenerator{result: report.Result{}}, &fakeQueue{}, fakeChat{})

	got := pipeline.Trigger(context.Background(), scenario, domain.MetricSample{})
	assert.Equal(t, scenario.Actions, got.ActionItems)
}
