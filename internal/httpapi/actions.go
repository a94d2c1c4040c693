package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/pkg/httputil"
)

type actionExecutionResponse struct {
	Execution domain.ActionExecution `json:"execution"`
}

func (a *API) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	execution, err := a.actions.ExecutePending(r.Context(), id)
	if err != nil {
		httputil.HandleError(w, r, a.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actionExecutionResponse{Execution: execution})
}

func (a *API) handleDeferAction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	execution, err := a.actions.DeferExecution(r.Context(), id)
	if err != nil {
		httputil.HandleError(w, r, a.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actionExecutionResponse{Execution: execution})
}
