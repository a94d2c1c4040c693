package httputil

import (
	"context"
	"net/http"

	"github.com/incident-console/backend/pkg/apierrors"
	"github.com/incident-console/backend/pkg/logger"
)

// handleError logs the error and writes the appropriate HTTP status based on
// the error's concrete type. Domain code is expected to return
// *apierrors.ServiceError; anything else maps to a 500.
func handleError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	if log != nil {
		log.WithField("path", r.URL.Path).WithError(err).Error("handler failed")
	}

	svcErr := apierrors.AsServiceError(err)
	WriteErrorResponse(w, r, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
}

// HandleError is the exported form of handleError, for handlers that build
// their response manually instead of going through HandleJSON/HandleNoBody.
func HandleError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	handleError(w, r, log, err)
}

// HandleJSON decodes a JSON request body into Req, calls fn, and writes the
// result as a JSON response. It eliminates the repeated
// decode -> execute -> respond boilerplate used by every console endpoint.
func HandleJSON[Req any, Resp any](
	log *logger.Logger,
	fn func(ctx context.Context, req *Req) (Resp, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if !DecodeJSON(w, r, &req) {
			return
		}
		resp, err := fn(r.Context(), &req)
		if err != nil {
			handleError(w, r, log, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleNoBody handles requests that carry no JSON body (typically GET).
// It calls fn and writes the result as JSON.
func HandleNoBody[Resp any](
	log *logger.Logger,
	fn func(ctx context.Context) (Resp, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := fn(r.Context())
		if err != nil {
			handleError(w, r, log, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleNoBodyWithPathVars is like HandleNoBody but passes the mux path
// variables through to fn, for endpoints keyed by an ID in the URL
// (e.g. /actions/{id}/execute).
func HandleNoBodyWithPathVars[Resp any](
	log *logger.Logger,
	vars func(r *http.Request) map[string]string,
	fn func(ctx context.Context, pathVars map[string]string) (Resp, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := fn(r.Context(), vars(r))
		if err != nil {
			handleError(w, r, log, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// RespondCreated writes a 201 Created response with the given data.
func RespondCreated(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusCreated, data)
}

// RespondNoContent writes a 204 No Content response.
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
