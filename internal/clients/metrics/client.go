// Package metrics implements the Metrics Client: a synchronous instant-
// value fetch against a Prometheus-compatible query endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/incident-console/backend/pkg/apierrors"
	"github.com/incident-console/backend/pkg/httputil"
	"github.com/tidwall/gjson"
)

const defaultTimeout = 10 * time.Second

// Client fetches instant metric values.
type Client struct {
	httpClient *http.Client
}

// New constructs a metrics Client.
func New() *Client {
	return &Client{
		httpClient: httputil.NewClient(httputil.ClientConfig{Timeout: defaultTimeout}, httputil.ClientDefaults{
			Timeout:      defaultTimeout,
			MaxBodyBytes: 1 << 20,
		}),
	}
}

// InstantValue performs a single GET against baseURL with query and parses
// the first numeric sample out of the reply body.
func (c *Client) InstantValue(ctx context.Context, baseURL, query string) (float64, error) {
	endpoint, _, err := httputil.NormalizeBaseURL(baseURL)
	if err != nil {
		return 0, apierrors.BadRequest(err.Error())
	}

	url := fmt.Sprintf("%s/api/v1/query?query=%s", endpoint, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, apierrors.Internal("build metrics request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, apierrors.Upstream("metrics", err)
	}
	defer resp.Body.Close()

	body, _, err := httputil.ReadAllWithLimit(resp.Body, 1<<20)
	if err != nil {
		return 0, apierrors.Upstream("metrics", err)
	}

	if resp.StatusCode >= 400 {
		return 0, apierrors.Upstream("metrics", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	result := gjson.GetBytes(body, "data.result.0.value.1")
	if !result.Exists() {
		return 0, apierrors.Upstream("metrics", fmt.Errorf("no result in response"))
	}

	value, err := strconv.ParseFloat(result.String(), 64)
	if err != nil {
		return 0, apierrors.Upstream("metrics", fmt.Errorf("non-numeric sample %q", result.String()))
	}
	return value, nil
}
