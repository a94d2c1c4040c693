package httpapi

import (
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/pkg/httputil"
)

type alertTriggerResponse struct {
	Scenario      domain.AlertScenario `json:"scenario"`
	AlertEntry    string               `json:"alert_entry"`
	FeedMessage   string               `json:"feed_message"`
	Hypotheses    []string             `json:"hypotheses"`
	Evidence      []string             `json:"evidence"`
	Actions       []string             `json:"actions"`
	VerifyEnabled bool                 `json:"verify_enabled"`
}

// handleAlertTrigger picks a random seeded scenario and records it as a
// manual demo alert, independent of the Sampling Monitor's automatic
// incident detection.
func (a *API) handleAlertTrigger(w http.ResponseWriter, r *http.Request) {
	scenarios := a.store.Scenarios()
	if len(scenarios) == 0 {
		httputil.WriteErrorResponse(w, r, http.StatusInternalServerError, "INTERNAL", "no scenarios configured", nil)
		return
	}
	scenario := scenarios[rand.Intn(len(scenarios))]

	chatSettings := a.store.ChatSettings()
	channel := chatSettings.Channel
	if channel == "" {
		channel = defaultChatChannel
	}

	alertEntry := fmt.Sprintf("[%s] %s", time.Now().UTC().Format("15:04:05"), scenario.Title)
	feedMessage := fmt.Sprintf("Alert fired %s -> chat %s", scenario.Code, channel)

	a.store.RecordAlert(alertEntry, scenario)
	a.store.AppendFeed(feedMessage)

	httputil.WriteJSON(w, http.StatusOK, alertTriggerResponse{
		Scenario:      scenario,
		AlertEntry:    alertEntry,
		FeedMessage:   feedMessage,
		Hypotheses:    enumerate(scenario.Hypotheses),
		Evidence:      bulleted(append(append([]string{}, scenario.Evidences...), "Linked metrics: http_5xx_rate, cpu_utilization")),
		Actions:       enumerate(append(append([]string{}, scenario.Actions...), "Post action: verify metrics for recovery")),
		VerifyEnabled: true,
	})
}

type alertVerifyResponse struct {
	HTTP          float64 `json:"http"`
	CPU           float64 `json:"cpu"`
	HTTPThreshold float64 `json:"http_threshold"`
	CPUThreshold  float64 `json:"cpu_threshold"`
	Status        string  `json:"status"`
}

// handleAlertVerify is a point-in-time recovery check: one metrics fetch
// compared against the saved thresholds, independent of the Monitor's
// rolling window.
func (a *API) handleAlertVerify(w http.ResponseWriter, r *http.Request) {
	settings := a.store.MetricsSettings()
	if !settings.Configured() {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "metrics are not configured", nil)
		return
	}

	httpValue, err := a.metrics.InstantValue(r.Context(), settings.URL, settings.HTTPQuery)
	if err != nil {
		httputil.HandleError(w, r, a.log, err)
		return
	}
	cpuValue, err := a.metrics.InstantValue(r.Context(), settings.URL, settings.CPUQuery)
	if err != nil {
		httputil.HandleError(w, r, a.log, err)
		return
	}

	status := "pending"
	if httpValue <= settings.HTTPThreshold && cpuValue <= settings.CPUThreshold {
		status = "recovered"
	}

	a.store.AppendFeed(fmt.Sprintf(
		"Verification http=%.4f (threshold %.4f), cpu=%.4f (threshold %.4f)",
		httpValue, settings.HTTPThreshold, cpuValue, settings.CPUThreshold,
	))

	httputil.WriteJSON(w, http.StatusOK, alertVerifyResponse{
		HTTP:          httpValue,
		CPU:           cpuValue,
		HTTPThreshold: settings.HTTPThreshold,
		CPUThreshold:  settings.CPUThreshold,
		Status:        status,
	})
}

func enumerate(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = fmt.Sprintf("%d. %s", i+1, item)
	}
	return out
}

func bulleted(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = "- " + item
	}
	return out
}
