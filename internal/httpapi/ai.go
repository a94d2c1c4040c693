package httpapi

import (
	"net/http"
	"strings"

	"github.com/incident-console/backend/pkg/httputil"
)

type aiSaveRequest struct {
	APIKey string `json:"api_key"`
}

func (a *API) handleAISave(w http.ResponseWriter, r *http.Request) {
	var req aiSaveRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	key := strings.TrimSpace(req.APIKey)
	a.store.SetLLMAPIKey(key)

	message := "LLM API key cleared."
	if key != "" {
		message = "LLM API key configured."
	}
	a.store.AppendFeed(message)
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: message})
}
