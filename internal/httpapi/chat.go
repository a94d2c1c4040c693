package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/internal/state"
	"github.com/incident-console/backend/pkg/httputil"
)

type chatTestRequest struct {
	Token string `json:"token"`
}

func (a *API) handleChatTest(w http.ResponseWriter, r *http.Request) {
	var req chatTestRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	identity, err := a.chat.Test(r.Context(), req.Token)
	if err != nil {
		httputil.HandleError(w, r, a.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identity)
}

type chatSaveRequest struct {
	Token     string `json:"token"`
	Channel   string `json:"channel"`
	Workspace string `json:"workspace"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (a *API) handleChatSave(w http.ResponseWriter, r *http.Request) {
	var req chatSaveRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	a.store.SetChatSettings(state.ChatSettings{
		Token:     req.Token,
		Channel:   req.Channel,
		Workspace: req.Workspace,
	})
	workspace := req.Workspace
	if workspace == "" {
		workspace = "workspace"
	}
	message := fmt.Sprintf("Chat settings saved for %s", workspace)
	a.store.AppendFeed(message)
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: message})
}

type chatDispatchRequest struct {
	Channel    string `json:"channel"`
	ReportBody string `json:"report_body"`
}

// handleChatDispatch posts an incident message for the most recently
// triggered alert scenario. It requires a prior call to /alerts/trigger.
func (a *API) handleChatDispatch(w http.ResponseWriter, r *http.Request) {
	var req chatDispatchRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	scenario, ok := a.store.LastAlertScenario()
	if !ok {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "no alert has been triggered yet", nil)
		return
	}

	preferences := a.store.Preferences()
	if !preferences.ChatEnabled {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "chat auto notifications are disabled; enable the checkbox to send messages", nil)
		return
	}

	settings := a.store.ChatSettings()
	if settings.Token == "" {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "chat token is not configured", nil)
		return
	}
	workspace := settings.Workspace
	if workspace == "" {
		workspace = "workspace"
	}
	channel := req.Channel
	if channel == "" {
		channel = settings.Channel
	}
	if channel == "" {
		channel = defaultChatChannel
	}

	text := buildDispatchMessage(scenario, req.ReportBody)
	receipt, err := a.chat.Post(r.Context(), settings.Token, channel, text)
	if err != nil {
		httputil.HandleError(w, r, a.log, err)
		return
	}

	a.store.AppendFeed(fmt.Sprintf("Chat incident dispatched to %s (%s)", channel, workspace))
	httputil.WriteJSON(w, http.StatusOK, receipt)
}

func buildDispatchMessage(scenario domain.AlertScenario, reportBody string) string {
	if reportBody != "" {
		return reportBody
	}

	lines := []string{
		":rotating_light: " + scenario.Title,
		"Source: " + scenario.Source,
		"Top hypotheses:",
	}
	for i, hypothesis := range scenario.Hypotheses {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, hypothesis))
	}
	lines = append(lines, "Recommended next step:")
	if len(scenario.Actions) > 0 {
		lines = append(lines, scenario.Actions[0])
	}
	return strings.Join(lines, "\n")
}
