package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/internal/state"
	"github.com/incident-console/backend/pkg/apierrors"
	"github.com/incident-console/backend/pkg/httputil"
)

type preferencesRequest struct {
	Chat bool `json:"chat"`
}

func (a *API) handleNotificationPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	a.store.SetPreferences(state.Preferences{ChatEnabled: req.Chat})
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"chat": req.Chat})
}

type recipientsResponse struct {
	Emails []domain.EmailRecipient `json:"emails"`
}

func (a *API) handleListRecipients(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, recipientsResponse{Emails: a.store.Recipients()})
}

type addRecipientRequest struct {
	Email string `json:"email"`
}

type addRecipientResponse struct {
	Recipient domain.EmailRecipient `json:"recipient"`
}

type removeRecipientResponse struct {
	Removed string `json:"removed"`
}

type acknowledgePendingResponse struct {
	Status   string `json:"status"`
	ReportID string `json:"report_id"`
}

func (a *API) handleAddRecipient(w http.ResponseWriter, r *http.Request) {
	var req addRecipientRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "email is required", nil)
		return
	}

	recipient := domain.EmailRecipient{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	saved, ok := a.store.AddRecipient(recipient)
	if !ok {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "recipient already exists", nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, addRecipientResponse{Recipient: saved})
}

func (a *API) handleRemoveRecipient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !a.store.RemoveRecipient(id) {
		httputil.HandleError(w, r, a.log, apierrors.NotFoundRecipient(id))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, removeRecipientResponse{Removed: id})
}

func (a *API) handleAcknowledgePending(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	report, ok := a.store.AcknowledgePendingReport(id)
	if !ok {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "unknown pending report", nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acknowledgePendingResponse{Status: "acknowledged", ReportID: report.ID})
}
