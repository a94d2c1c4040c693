package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/incident-console/backend/internal/clients/chat"
	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/internal/state"
	"github.com/incident-console/backend/pkg/apierrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKnowledge struct {
	docs     []domain.KnowledgeDocument
	uploaded []struct {
		title, content string
		metadata       map[string]interface{}
	}
}

func (f *fakeKnowledge) Documents() []domain.KnowledgeDocument { return f.docs }

func (f *fakeKnowledge) RecordUpload(id, title, content string, metadata map[string]interface{}) (string, error) {
	f.uploaded = append(f.uploaded, struct {
		title, content string
		metadata       map[string]interface{}
	}{title, content, metadata})
	return "uploaded:" + id, nil
}

type fakeMetricsClient struct {
	values map[string]float64
	err    error
}

func (f *fakeMetricsClient) InstantValue(ctx context.Context, baseURL, query string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.values[query], nil
}

type fakeChatClient struct {
	identity chat.Identity
	receipt  chat.Receipt
	err      error
	posted   []string
}

func (f *fakeChatClient) Test(ctx context.Context, token string) (chat.Identity, error) {
	return f.identity, f.err
}

func (f *fakeChatClient) Post(ctx context.Context, token, channel, text string) (chat.Receipt, error) {
	if f.err != nil {
		return chat.Receipt{}, f.err
	}
	f.posted = append(f.posted, text)
	return f.receipt, nil
}

type fakeActionService struct {
	execution domain.ActionExecution
	err       error
}

func (f *fakeActionService) ExecutePending(ctx context.Context, id string) (domain.ActionExecution, error) {
	return f.execution, f.err
}

func (f *fakeActionService) DeferExecution(ctx context.Context, id string) (domain.ActionExecution, error) {
	return f.execution, f.err
}

func newTestAPI() (*API, *state.Store, *fakeKnowledge, *fakeMetricsClient, *fakeChatClient, *fakeActionService) {
	store := state.New(domain.SeedScenarios(), 5)
	knowledgeStore := &fakeKnowledge{}
	metricsClient := &fakeMetricsClient{values: map[string]float64{}}
	chatClient := &fakeChatClient{}
	actions := &fakeActionService{}
	api := New(store, knowledgeStore, metricsClient, chatClient, actions)
	return api, store, knowledgeStore, metricsClient, chatClient, actions
}

func doRequest(t *testing.T, api *API, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndState(t *testing.T) {
	api, _, _, _, _, _ := newTestAPI()

	rec := doRequest(t, api, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, api, http.MethodGet, "/state", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var snapshot state.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Len(t, snapshot.Scenarios, 2)
}

func TestAlertTriggerThenChatDispatchUsesLastAlert(t *testing.T) {
	api, store, _, _, chatClient, _ := newTestAPI()
	store.SetChatSettings(state.ChatSettings{Token: "tok", Channel: "#ops", Workspace: "acme"})
	store.SetPreferences(state.Preferences{ChatEnabled: true})

	rec := doRequest(t, api, http.MethodPost, "/alerts/trigger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var triggerResp alertTriggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &triggerResp))
	assert.True(t, triggerResp.VerifyEnabled)
	assert.NotEmpty(t, triggerResp.Scenario.Code)

	rec = doRequest(t, api, http.MethodPost, "/chat/dispatch", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, chatClient.posted, 1)
}

func TestChatDispatchWithoutAlertFails(t *testing.T) {
	api, store, _, _, _, _ := newTestAPI()
	store.SetChatSettings(state.ChatSettings{Token: "tok", Channel: "#ops"})
	store.SetPreferences(state.Preferences{ChatEnabled: true})

	rec := doRequest(t, api, http.MethodPost, "/chat/dispatch", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertVerifyReportsRecoveredWhenBelowThresholds(t *testing.T) {
	api, store, _, metricsClient, _, _ := newTestAPI()
	store.SetMetricsSettings(state.MetricsSettings{
		URL: "http://prom", HTTPQuery: "http_q", CPUQuery: "cpu_q",
		HTTPThreshold: 0.05, CPUThreshold: 0.80,
	})
	metricsClient.values["http_q"] = 0.01
	metricsClient.values["cpu_q"] = 0.10

	rec := doRequest(t, api, http.MethodPost, "/alerts/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp alertVerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "recovered", resp.Status)
}

func TestAlertVerifyWithoutConfigurationFails(t *testing.T) {
	api, _, _, _, _, _ := newTestAPI()
	rec := doRequest(t, api, http.MethodPost, "/alerts/verify", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsSaveDefaultsThresholds(t *testing.T) {
	api, store, _, _, _, _ := newTestAPI()
	rec := doRequest(t, api, http.MethodPost, "/metrics/save", map[string]string{
		"url": "http://prom", "http_query": "a", "cpu_query": "b",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	settings := store.MetricsSettings()
	assert.InDelta(t, 0.05, settings.HTTPThreshold, 0.0001)
	assert.InDelta(t, 0.80, settings.CPUThreshold, 0.0001)
}

func TestRAGUploadTextFile(t *testing.T) {
	api, _, knowledgeStore, _, _, _ := newTestAPI()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "runbook.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("restart the service"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/rag/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, knowledgeStore.uploaded, 1)
	assert.Equal(t, "runbook", knowledgeStore.uploaded[0].title)
}

func TestRAGUploadRejectsUnsupportedSuffix(t *testing.T) {
	api, _, _, _, _, _ := newTestAPI()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "runbook.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("whatever"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/rag/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecipientLifecycle(t *testing.T) {
	api, _, _, _, _, _ := newTestAPI()

	rec := doRequest(t, api, http.MethodPost, "/notifications/emails", map[string]string{"email": "oncall@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	var added addRecipientResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	assert.NotEmpty(t, added.Recipient.ID)

	rec = doRequest(t, api, http.MethodGet, "/notifications/emails", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed recipientsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed.Emails, 1)

	rec = doRequest(t, api, http.MethodDelete, "/notifications/emails/"+added.Recipient.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var removed removeRecipientResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &removed))
	assert.Equal(t, added.Recipient.ID, removed.Removed)
}

func TestRemoveUnknownRecipientReturns404(t *testing.T) {
	api, _, _, _, _, _ := newTestAPI()
	rec := doRequest(t, api, http.MethodDelete, "/notifications/emails/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAcknowledgePendingReportReturnsStatusEnvelope(t *testing.T) {
	api, store, _, _, _, _ := newTestAPI()
	store.RecordReport(domain.IncidentReport{ID: "report-1", RecipientsMissing: []string{"oncall@example.com"}})

	rec := doRequest(t, api, http.MethodPost, "/notifications/pending/report-1/ack", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp acknowledgePendingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "acknowledged", resp.Status)
	assert.Equal(t, "report-1", resp.ReportID)
}

func TestExecuteActionSurfacesServiceError(t *testing.T) {
	api, _, _, _, _, actions := newTestAPI()
	actions.err = apierrors.BadRequest("already executed")

	rec := doRequest(t, api, http.MethodPost, "/actions/exec-1/execute", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteActionSucceeds(t *testing.T) {
	api, _, _, _, _, actions := newTestAPI()
	actions.execution = domain.ActionExecution{ID: "exec-1", Status: domain.ExecutionExecuted}

	rec := doRequest(t, api, http.MethodPost, "/actions/exec-1/execute", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp actionExecutionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "exec-1", resp.Execution.ID)
}

func TestUpstreamErrorMapsTo502(t *testing.T) {
	api, store, _, metricsClient, _, _ := newTestAPI()
	store.SetMetricsSettings(state.MetricsSettings{URL: "http://prom", HTTPQuery: "a", CPUQuery: "b"})
	metricsClient.err = apierrors.Upstream("metrics", errors.New("boom"))

	rec := doRequest(t, api, http.MethodPost, "/alerts/verify", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
