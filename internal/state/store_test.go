package state

import (
	"testing"
	"time"

	"github.com/incident-console/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushSampleEvictsOldestAtCapacity(t *testing.T) {
	store := New(domain.SeedScenarios(), 3)

	for i := 0; i < 5; i++ {
		store.PushSample(domain.MetricSample{Timestamp: time.Now(), HTTP: float64(i)})
	}

	samples := store.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, float64(2), samples[0].HTTP)
	assert.Equal(t, float64(4), samples[2].HTTP)
}

func TestWindowFull(t *testing.T) {
	store := New(domain.SeedScenarios(), 3)
	assert.False(t, store.WindowFull())
	store.PushSample(domain.MetricSample{})
	store.PushSample(domain.MetricSample{})
	assert.False(t, store.WindowFull())
	store.PushSample(domain.MetricSample{})
	assert.True(t, store.WindowFull())
}

func TestActivateIncidentIsOnceOnly(t *testing.T) {
	store := New(domain.SeedScenarios(), 5)
	assert.True(t, store.ActivateIncident(domain.ScenarioHTTP5xxSurge))
	assert.False(t, store.ActivateIncident(domain.ScenarioHTTP5xxSurge))

	active := store.ActiveIncidents()
	assert.True(t, active[domain.ScenarioHTTP5xxSurge])

	store.DeactivateIncident(domain.ScenarioHTTP5xxSurge)
	assert.Empty(t, store.ActiveIncidents())
}

func TestPendingReportsCapacityEvictsOldest(t *testing.T) {
	store := New(domain.SeedScenarios(), 5)
	for i := 0; i < pendingReportCap+5; i++ {
		store.RecordReport(domain.IncidentReport{
			ID:                time.Now().Format(time.RFC3339Nano) + string(rune(i)),
			RecipientsMissing: []string{"chat"},
		})
	}
	assert.Len(t, store.PendingReports(), pendingReportCap)
}

func TestActionExecutionCapacityEvictsOldest(t *testing.T) {
	store := New(domain.SeedScenarios(), 5)
	for i := 0; i < actionExecutionCap+5; i++ {
		store.QueueExecution(domain.ActionExecution{ID: string(rune('a' + i%20))})
	}
	assert.Len(t, store.Executions(), actionExecutionCap)
}

func TestAddRecipientRejectsDuplicateEmail(t *testing.T) {
	store := New(domain.SeedScenarios(), 5)
	_, ok := store.AddRecipient(domain.EmailRecipient{ID: "1", Email: "a@example.com"})
	assert.True(t, ok)
	_, ok = store.AddRecipient(domain.EmailRecipient{ID: "2", Email: "a@example.com"})
	assert.False(t, ok)
	assert.Len(t, store.Recipients(), 1)
}

func TestAcknowledgePendingReportRemovesWithoutRewritingHistory(t *testing.T) {
	store := New(domain.SeedScenarios(), 5)
	store.RecordReport(domain.IncidentReport{
		ID:                "r1",
		RecipientsMissing: []string{"chat"},
	})

	report, ok := store.AcknowledgePendingReport("r1")
	require.True(t, ok)
	assert.Equal(t, []string{"chat"}, report.RecipientsMissing)
	assert.Empty(t, store.PendingReports())
}

func TestResolvePendingRecoveryChecks(t *testing.T) {
	store := New(domain.SeedScenarios(), 5)
	store.OpenRecoveryCheck(domain.RecoveryCheck{ExecutionID: "e1", Status: domain.RecoveryPending})
	store.OpenRecoveryCheck(domain.RecoveryCheck{ExecutionID: "e2", Status: domain.RecoveryPending})

	changed := store.ResolvePendingRecoveryChecks(time.Now())
	assert.Len(t, changed, 2)
	for _, c := range store.RecoveryChecks() {
		assert.Equal(t, domain.RecoveryRecovered, c.Status)
		assert.NotNil(t, c.ResolvedAt)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	store := New(domain.SeedScenarios(), 5)
	store.PushSample(domain.MetricSample{HTTP: 1})

	snap := store.Snapshot()
	snap.Samples[0].HTTP = 999

	assert.Equal(t, float64(1), store.Samples()[0].HTTP)
}
