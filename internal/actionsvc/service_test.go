package actionsvc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/incident-console/backend/internal/clients/simulator"
	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/pkg/apierrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu         sync.Mutex
	execs      map[string]domain.ActionExecution
	feed       []string
	recoveries []domain.RecoveryCheck
}

func newFakeStore() *fakeStore {
	return &fakeStore{execs: make(map[string]domain.ActionExecution)}
}

func (f *fakeStore) QueueExecution(exec domain.ActionExecution) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs[exec.ID] = exec
}

func (f *fakeStore) Execution(id string) (domain.ActionExecution, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.execs[id]
	return e, ok
}

func (f *fakeStore) UpdateExecution(exec domain.ActionExecution) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs[exec.ID] = exec
	return true
}

func (f *fakeStore) AppendFeed(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feed = append(f.feed, line)
}

func (f *fakeStore) OpenRecoveryCheck(check domain.RecoveryCheck) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recoveries = append(f.recoveries, check)
}

type fakeKnowledge struct {
	executed []domain.ActionExecution
	deferred []domain.ActionExecution
}

func (f *fakeKnowledge) RecordExecuted(exec domain.ActionExecution) error {
	f.executed = append(f.executed, exec)
	return nil
}
func (f *fakeKnowledge) RecordDeferred(exec domain.ActionExecution) error {
	f.deferred = append(f.deferred, exec)
	return nil
}

type fakeSimulator struct {
	healthy bool
	failAt  string
}

func (f *fakeSimulator) Execute(ctx context.Context, executionID, action string) (simulator.ExecuteResult, error) {
	if action == f.failAt {
		return simulator.ExecuteResult{}, errors.New("simulated failure")
	}
	return simulator.ExecuteResult{ExecutionID: executionID, Status: "success", Detail: "ok", ExecutedAt: time.Now()}, nil
}
func (f *fakeSimulator) Healthy(ctx context.Context) bool { return f.healthy }

type fakeSink struct {
	notified []domain.ActionExecution
}

func (f *fakeSink) Notify(ctx context.Context, exec domain.ActionExecution) {
	f.notified = append(f.notified, exec)
}

func TestQueueFromReportSkipsEmptyActions(t *testing.T) {
	svc := New(newFakeStore(), &fakeKnowledge{}, &fakeSimulator{healthy: true}, &fakeSink{})
	_, ok := svc.QueueFromReport(domain.IncidentReport{ID: "r1", ActionItems: []string{"  ", ""}})
	assert.False(t, ok)
}

func TestQueueFromReportDedupesActions(t *testing.T) {
	svc := New(newFakeStore(), &fakeKnowledge{}, &fakeSimulator{healthy: true}, &fakeSink{})
	exec, ok := svc.QueueFromReport(domain.IncidentReport{ID: "r1", ActionItems: []string{"a", "a", "b"}})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, exec.Actions)
	assert.Equal(t, domain.ExecutionPending, exec.Status)
}

func TestExecutePendingSucceeds(t *testing.T) {
	store := newFakeStore()
	knowledgeStore := &fakeKnowledge{}
	sink := &fakeSink{}
	svc := New(store, knowledgeStore, &fakeSimulator{healthy: true}, sink)

	exec, _ := svc.QueueFromReport(domain.IncidentReport{ID: "r1", ScenarioCode: "http_5xx_surge", Title: "HTTP", ActionItems: []string{"restart"}})

	result, err := svc.ExecutePending(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionExecuted, result.Status)
	assert.Len(t, result.Results, 1)
	assert.NotNil(t, result.ExecutedAt)
	assert.Len(t, store.recoveries, 1)
	assert.Len(t, knowledgeStore.executed, 1)
	assert.Len(t, sink.notified, 1)
}

func TestExecutePendingIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeKnowledge{}, &fakeSimulator{healthy: true}, &fakeSink{})
	exec, _ := svc.QueueFromReport(domain.IncidentReport{ID: "r1", ActionItems: []string{"restart"}})

	first, err := svc.ExecutePending(context.Background(), exec.ID)
	require.NoError(t, err)
	second, err := svc.ExecutePending(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, store.recoveries, 1)
}

func TestExecutePendingAbortsPlanOnSimulatorFailure(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeKnowledge{}, &fakeSimulator{healthy: true, failAt: "scale"}, &fakeSink{})
	exec, _ := svc.QueueFromReport(domain.IncidentReport{ID: "r1", ActionItems: []string{"restart", "scale"}})

	_, err := svc.ExecutePending(context.Background(), exec.ID)
	require.Error(t, err)

	stored, _ := store.Execution(exec.ID)
	assert.Equal(t, domain.ExecutionPending, stored.Status)
}

func TestExecutePendingMapsRealSimulatorFailureToBadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	simulatorClient, err := simulator.New(srv.URL)
	require.NoError(t, err)

	store := newFakeStore()
	svc := New(store, &fakeKnowledge{}, simulatorClient, &fakeSink{})
	exec, _ := svc.QueueFromReport(domain.IncidentReport{ID: "r1", ActionItems: []string{"restart"}})

	_, err = svc.ExecutePending(context.Background(), exec.ID)
	require.Error(t, err)
	assert.True(t, apierrors.IsBadRequest(err))
	assert.Equal(t, http.StatusBadRequest, apierrors.AsServiceError(err).HTTPStatus)

	stored, _ := store.Execution(exec.ID)
	assert.Equal(t, domain.ExecutionPending, stored.Status)
}

func TestDeferExecutionClearsResults(t *testing.T) {
	store := newFakeStore()
	knowledgeStore := &fakeKnowledge{}
	svc := New(store, knowledgeStore, &fakeSimulator{healthy: true}, &fakeSink{})
	exec, _ := svc.QueueFromReport(domain.IncidentReport{ID: "r1", ActionItems: []string{"restart"}})

	result, err := svc.DeferExecution(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionDeferred, result.Status)
	assert.Nil(t, result.ExecutedAt)
	assert.Len(t, knowledgeStore.deferred, 1)
}

func TestDeferExecutionOnAlreadyExecutedIsNoOp(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeKnowledge{}, &fakeSimulator{healthy: true}, &fakeSink{})
	exec, _ := svc.QueueFromReport(domain.IncidentReport{ID: "r1", ActionItems: []string{"restart"}})
	executed, err := svc.ExecutePending(context.Background(), exec.ID)
	require.NoError(t, err)

	deferred, err := svc.DeferExecution(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, executed, deferred)
}

func TestExecutePendingUnknownIDIsBadRequest(t *testing.T) {
	svc := New(newFakeStore(), &fakeKnowledge{}, &fakeSimulator{healthy: true}, &fakeSink{})
	_, err := svc.ExecutePending(context.Background(), "missing")
	require.Error(t, err)
}
