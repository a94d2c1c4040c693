package knowledge

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/incident-console/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)
	return store
}

func TestBootstrapSeedsOneDocumentPerScenario(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Bootstrap(domain.SeedScenarios()))

	docs := store.Documents()
	assert.Len(t, docs, len(domain.SeedScenarios()))
}

func TestAddIsIdempotentOnDocKey(t *testing.T) {
	store := newTestStore(t)
	exec := domain.ActionExecution{ID: "e1", ScenarioCode: "http_5xx_surge", ScenarioTitle: "HTTP 5xx", Actions: []string{"restart"}}

	require.NoError(t, store.RecordExecuted(exec))
	require.NoError(t, store.RecordExecuted(exec))

	assert.Len(t, store.Documents(), 1)
}

func TestMarkRecoveryOnUnknownExecutionReturnsFalse(t *testing.T) {
	store := newTestStore(t)
	ok, err := store.MarkRecovery("missing", domain.DocRecoveryRecovered, time.Now(), domain.MetricSample{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkRecoveryIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	exec := domain.ActionExecution{ID: "e1", ScenarioCode: "http_5xx_surge", ScenarioTitle: "HTTP 5xx"}
	require.NoError(t, store.RecordExecuted(exec))

	ok, err := store.MarkRecovery("e1", domain.DocRecoveryRecovered, time.Now(), domain.MetricSample{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkRecovery("e1", domain.DocRecoveryRecovered, time.Now(), domain.MetricSample{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPersistenceSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, store.Bootstrap(domain.SeedScenarios()))

	reloaded, err := New(dir)
	require.NoError(t, err)
	assert.Len(t, reloaded.Documents(), len(domain.SeedScenarios()))
	assert.FileExists(t, filepath.Join(dir, "documents.json"))
}

func TestBuildContextForScenarioPrefersApprovedActions(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Bootstrap(domain.SeedScenarios()))
	require.NoError(t, store.RecordExecuted(domain.ActionExecution{
		ID:            "e1",
		ScenarioCode:  domain.ScenarioHTTP5xxSurge,
		ScenarioTitle: "HTTP 5xx error surge",
		Actions:       []string{"Roll back the most recent deploy"},
	}))

	scenario, _ := scenarioByCode(domain.SeedScenarios(), domain.ScenarioHTTP5xxSurge)
	ctx := store.BuildContextForScenario(scenario, 5)
	assert.Contains(t, ctx, "Roll back the most recent deploy")
}

func TestBuildContextForScenarioFallsBackToGlobalRecentActions(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.RecordExecuted(domain.ActionExecution{
		ID:            "e1",
		ScenarioCode:  domain.ScenarioHTTP5xxSurge,
		ScenarioTitle: "HTTP 5xx error surge",
		Actions:       []string{"Roll back the most recent deploy"},
	}))

	scenario, _ := scenarioByCode(domain.SeedScenarios(), domain.ScenarioCPUSpikeCore)
	ctx := store.BuildContextForScenario(scenario, 5)
	assert.Contains(t, ctx, "Recently approved actions")
	assert.Contains(t, ctx, "Roll back the most recent deploy")
}

func TestBuildContextForScenarioEmptyWhenNothingMatches(t *testing.T) {
	store := newTestStore(t)
	scenario, _ := scenarioByCode(domain.SeedScenarios(), domain.ScenarioCPUSpikeCore)
	assert.Equal(t, "", store.BuildContextForScenario(scenario, 5))
}

func scenarioByCode(scenarios []domain.AlertScenario, code string) (domain.AlertScenario, bool) {
	for _, s := range scenarios {
		if s.Code == code {
			return s, true
		}
	}
	return domain.AlertScenario{}, false
}
