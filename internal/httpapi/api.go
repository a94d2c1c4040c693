// Package httpapi implements the console's synchronous HTTP surface: state
// inspection, the RAG document registry, integration settings, manual alert
// demo endpoints, and the action execution lifecycle. Handlers take the
// State Store's lock only for their minimal critical section, then release
// it before any network I/O.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/incident-console/backend/internal/clients/chat"
	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/internal/state"
	"github.com/incident-console/backend/pkg/httputil"
	"github.com/incident-console/backend/pkg/logger"
	"github.com/incident-console/backend/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StateStore is the subset of the state store the API needs.
type StateStore interface {
	MetricsSettings() state.MetricsSettings
	SetMetricsSettings(state.MetricsSettings)
	ChatSettings() state.ChatSettings
	SetChatSettings(state.ChatSettings)
	SetLLMAPIKey(key string)
	Preferences() state.Preferences
	SetPreferences(state.Preferences)
	Scenarios() []domain.AlertScenario
	RecordAlert(label string, scenario domain.AlertScenario)
	LastAlertScenario() (domain.AlertScenario, bool)
	AppendFeed(line string)
	Snapshot() state.Snapshot
	AddRecipient(recipient domain.EmailRecipient) (domain.EmailRecipient, bool)
	RemoveRecipient(id string) bool
	Recipients() []domain.EmailRecipient
	AcknowledgePendingReport(id string) (domain.IncidentReport, bool)
}

// KnowledgeStore is the subset of the RAG store the API needs.
type KnowledgeStore interface {
	Documents() []domain.KnowledgeDocument
	RecordUpload(id, title, content string, metadata map[string]interface{}) (string, error)
}

// MetricsClient is the subset of the metrics client the API needs.
type MetricsClient interface {
	InstantValue(ctx context.Context, baseURL, query string) (float64, error)
}

// ChatClient is the subset of the chat client the API needs.
type ChatClient interface {
	Test(ctx context.Context, token string) (chat.Identity, error)
	Post(ctx context.Context, token, channel, text string) (chat.Receipt, error)
}

// ActionService is the subset of the action service the API needs.
type ActionService interface {
	ExecutePending(ctx context.Context, id string) (domain.ActionExecution, error)
	DeferExecution(ctx context.Context, id string) (domain.ActionExecution, error)
}

const defaultChatChannel = "#ops-incident"

// API wires the console's HTTP surface to its service-layer collaborators.
type API struct {
	store       StateStore
	knowledge   KnowledgeStore
	metrics     MetricsClient
	chat        ChatClient
	actions     ActionService
	log         *logger.Logger
	rateLimiter *perClientRateLimiter
}

// New constructs the HTTP API.
func New(store StateStore, knowledgeStore KnowledgeStore, metricsClient MetricsClient, chatClient ChatClient, actionService ActionService) *API {
	return &API{
		store:       store,
		knowledge:   knowledgeStore,
		metrics:     metricsClient,
		chat:        chatClient,
		actions:     actionService,
		log:         logger.NewDefault("http-api"),
		rateLimiter: newPerClientRateLimiter(20, 40),
	}
}

// Router builds the gorilla/mux router exposing every endpoint.
func (a *API) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(a.rateLimiter.middleware)

	router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/state", a.handleState).Methods(http.MethodGet)

	router.HandleFunc("/rag/documents", a.handleRAGDocuments).Methods(http.MethodGet)
	router.HandleFunc("/rag/upload", a.handleRAGUpload).Methods(http.MethodPost)

	router.HandleFunc("/alerts/trigger", a.handleAlertTrigger).Methods(http.MethodPost)
	router.HandleFunc("/alerts/verify", a.handleAlertVerify).Methods(http.MethodPost)

	router.HandleFunc("/chat/test", a.handleChatTest).Methods(http.MethodPost)
	router.HandleFunc("/chat/save", a.handleChatSave).Methods(http.MethodPost)
	router.HandleFunc("/chat/dispatch", a.handleChatDispatch).Methods(http.MethodPost)

	router.HandleFunc("/metrics/test", a.handleMetricsTest).Methods(http.MethodPost)
	router.HandleFunc("/metrics/save", a.handleMetricsSave).Methods(http.MethodPost)

	router.HandleFunc("/ai/save", a.handleAISave).Methods(http.MethodPost)

	router.HandleFunc("/notifications/preferences", a.handleNotificationPreferences).Methods(http.MethodPost)
	router.HandleFunc("/notifications/emails", a.handleListRecipients).Methods(http.MethodGet)
	router.HandleFunc("/notifications/emails", a.handleAddRecipient).Methods(http.MethodPost)
	router.HandleFunc("/notifications/emails/{id}", a.handleRemoveRecipient).Methods(http.MethodDelete)
	router.HandleFunc("/notifications/pending/{id}/ack", a.handleAcknowledgePending).Methods(http.MethodPost)

	router.HandleFunc("/actions/{id}/execute", a.handleExecuteAction).Methods(http.MethodPost)
	router.HandleFunc("/actions/{id}/defer", a.handleDeferAction).Methods(http.MethodPost)

	if metrics.Enabled() {
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	return router
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, a.store.Snapshot())
}
