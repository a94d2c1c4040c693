package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/incident-console/backend/internal/state"
	"github.com/incident-console/backend/pkg/httputil"
)

const (
	defaultHTTPThreshold = 0.05
	defaultCPUThreshold  = 0.80
)

type metricsTestRequest struct {
	URL       string `json:"url"`
	HTTPQuery string `json:"http_query"`
	CPUQuery  string `json:"cpu_query"`
}

type metricsTestResponse struct {
	HTTP float64 `json:"http"`
	CPU  float64 `json:"cpu"`
}

func (a *API) handleMetricsTest(w http.ResponseWriter, r *http.Request) {
	var req metricsTestRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	url := strings.TrimSpace(req.URL)
	httpQuery := strings.TrimSpace(req.HTTPQuery)
	cpuQuery := strings.TrimSpace(req.CPUQuery)

	httpValue, err := a.metrics.InstantValue(r.Context(), url, httpQuery)
	if err != nil {
		httputil.HandleError(w, r, a.log, err)
		return
	}
	cpuValue, err := a.metrics.InstantValue(r.Context(), url, cpuQuery)
	if err != nil {
		httputil.HandleError(w, r, a.log, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, metricsTestResponse{HTTP: httpValue, CPU: cpuValue})
}

type metricsSaveRequest struct {
	URL           string   `json:"url"`
	HTTPQuery     string   `json:"http_query"`
	CPUQuery      string   `json:"cpu_query"`
	HTTPThreshold *float64 `json:"http_threshold"`
	CPUThreshold  *float64 `json:"cpu_threshold"`
}

func (a *API) handleMetricsSave(w http.ResponseWriter, r *http.Request) {
	var req metricsSaveRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	httpThreshold := defaultHTTPThreshold
	if req.HTTPThreshold != nil {
		httpThreshold = *req.HTTPThreshold
	}
	cpuThreshold := defaultCPUThreshold
	if req.CPUThreshold != nil {
		cpuThreshold = *req.CPUThreshold
	}

	settings := state.MetricsSettings{
		URL:           strings.TrimSpace(req.URL),
		HTTPQuery:     strings.TrimSpace(req.HTTPQuery),
		CPUQuery:      strings.TrimSpace(req.CPUQuery),
		HTTPThreshold: httpThreshold,
		CPUThreshold:  cpuThreshold,
	}
	a.store.SetMetricsSettings(settings)

	url := settings.URL
	if url == "" {
		url = "(unset)"
	}
	message := fmt.Sprintf("Metrics settings saved for %s", url)
	a.store.AppendFeed(message)
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: message})
}
