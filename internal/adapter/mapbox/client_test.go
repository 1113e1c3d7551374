package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/observability"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var delhi = domain.Geo{Lat: 28.6139, Lon: 77.209}

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testClient(baseURL string, metrics *observability.Metrics) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_ReverseGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/77.209000,28.613900.json", r.URL.Path, "mapbox expects lon,lat")
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))

		resp := response{
			Features: []feature{
				{
					Center:    []float64{77.209, 28.6139},
					PlaceName: "New Delhi, Delhi, India",
					Text:      "New Delhi",
					Relevance: 0.98,
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	metrics := testMetrics()
	c := testClient(srv.URL, metrics)
	result, err := c.ReverseGeocode(context.Background(), delhi)
	require.NoError(t, err)

	assert.Equal(t, "New Delhi", result.Name)
	assert.Equal(t, "New Delhi, Delhi, India", result.FormattedAddress)
	assert.InDelta(t, 0.98, result.Confidence, 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("success")), 0)
}

func TestClient_ReverseGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{}}))
	}))
	defer srv.Close()

	metrics := testMetrics()
	result, err := testClient(srv.URL, metrics).ReverseGeocode(context.Background(), domain.Geo{Lat: 10, Lon: 65})
	require.NoError(t, err)
	assert.Empty(t, result.Name)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("empty")), 0)
}

func TestClient_ReverseGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	metrics := testMetrics()
	c := testClient(srv.URL, metrics)
	c.token = "bad-token"

	_, err := c.ReverseGeocode(context.Background(), delhi)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("error")), 0)
}

func TestClient_ReverseGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, testMetrics())
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.ReverseGeocode(context.Background(), delhi)
	require.Error(t, err)
}

func TestClient_ReverseGeocode_FallsBackThroughResolvePlace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL, testMetrics())
	name := domain.ResolvePlace(context.Background(), delhi, c, c.logger)
	assert.Equal(t, domain.PlaceName{Name: "Delhi", Source: domain.LabelFailed}, name)
}
