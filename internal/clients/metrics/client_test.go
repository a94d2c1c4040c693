package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/incident-console/backend/pkg/apierrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstantValueParsesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"result":[{"value":[1700000000,"0.42"]}]}}`))
	}))
	defer srv.Close()

	client := New()
	value, err := client.InstantValue(context.Background(), srv.URL, "http_5xx_rate")
	require.NoError(t, err)
	assert.Equal(t, 0.42, value)
}

func TestInstantValueUpstreamErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New()
	_, err := client.InstantValue(context.Background(), srv.URL, "http_5xx_rate")
	require.Error(t, err)
	assert.True(t, apierrors.IsUpstream(err))
}

func TestInstantValueUpstreamErrorOnMissingResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"result":[]}}`))
	}))
	defer srv.Close()

	client := New()
	_, err := client.InstantValue(context.Background(), srv.URL, "http_5xx_rate")
	require.Error(t, err)
	assert.True(t, apierrors.IsUpstream(err))
}

func TestInstantValueBadRequestOnInvalidBaseURL(t *testing.T) {
	client := New()
	_, err := client.InstantValue(context.Background(), "not a url", "q")
	require.Error(t, err)
	assert.True(t, apierrors.IsBadRequest(err))
}
