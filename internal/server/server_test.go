package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sogif-site/internal/cache"
	"sogif-site/internal/kpi"
	"sogif-site/internal/leads"
	"sogif-site/internal/loader"
	"sogif-site/internal/metrics"
	"sogif-site/internal/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var testNow = time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC)

func fixtureLoader(t *testing.T) loader.Loader {
	t.Helper()
	raw, err := os.ReadFile("testdata/constants.json")
	require.NoError(t, err)
	return loader.Func(func(ctx context.Context) (*kpi.Bundle, error) {
		return kpi.Decode(raw)
	})
}

type fakeLeads struct {
	got []leads.Submission
	err error
}

func (f *fakeLeads) Submit(ctx context.Context, sub leads.Submission, client leads.Client) (storage.Lead, error) {
	f.got = append(f.got, sub)
	if f.err != nil {
		return storage.Lead{}, f.err
	}
	return storage.Lead{ID: uuid.MustParse("6f1c1f9e-8d0c-4a57-9d4b-8a3f4b2c1d00"), Email: sub.Email}, nil
}

func newTestServer(t *testing.T, l loader.Loader, submitter LeadSubmitter) (*Server, *metrics.Registry) {
	t.Helper()
	reg := metrics.New()
	c := cache.New(l, cache.Options{Metrics: reg, Now: func() time.Time { return testNow }}, zerolog.Nop())
	srv, err := New(c, submitter, reg, Options{AllowedOrigins: []string{"https://sogif.example"}, Now: func() time.Time { return testNow }}, zerolog.Nop())
	require.NoError(t, err)
	return srv, reg
}

func do(srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGetConstants(t *testing.T) {
	srv, _ := newTestServer(t, fixtureLoader(t), nil)

	rec := do(srv, http.MethodGet, "/api/v1/constants", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://portal.sogif.example/login", body["portalUrl"])
	series := body["performanceKpiData"].(map[string]any)["monthlySeries"].([]any)
	assert.Len(t, series, 3)
}

func TestConstantsUnavailableFallsBackTo503(t *testing.T) {
	failing := loader.Func(func(ctx context.Context) (*kpi.Bundle, error) {
		return nil, errors.New("cms down")
	})
	srv, _ := newTestServer(t, failing, nil)

	for _, path := range []string{"/api/v1/constants", "/api/v1/page", "/api/v1/performance.csv", "/api/v1/sections/hero"} {
		rec := do(srv, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, path)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "DATA_UNAVAILABLE", body.Error.Code)
		assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	}
}

func TestPerformanceCSVDownload(t *testing.T) {
	srv, reg := newTestServer(t, fixtureLoader(t), nil)

	rec := do(srv, http.MethodGet, "/api/v1/performance.csv", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="sogif-performance-data-2025-04-02.csv"`, rec.Header().Get("Content-Disposition"))

	lines := strings.Split(rec.Body.String(), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Month,Issue Price,Redemption Price,"))
	assert.True(t, strings.HasPrefix(lines[1], "Jan 2025,1.0500,,1.0421,0.0057,170000001,"))
	assert.True(t, strings.HasPrefix(lines[2], "Feb 2025,1.0675,,"))
	assert.True(t, strings.HasPrefix(lines[3], "Mar 2025,1.0850,1.0412,"))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CSVDownloads))
}

func TestSections(t *testing.T) {
	srv, _ := newTestServer(t, fixtureLoader(t), nil)

	rec := do(srv, http.MethodGet, "/api/v1/sections/hero", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"distributionRate":"6.50%"`)

	rec = do(srv, http.MethodGet, "/api/v1/sections/footer", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNKNOWN_SECTION")
}

func TestPageResolvesConstantsOncePerRequest(t *testing.T) {
	srv, reg := newTestServer(t, fixtureLoader(t), nil)

	rec := do(srv, http.MethodGet, "/api/v1/page", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"keyMetrics"`)

	lookups := testutil.ToFloat64(reg.CacheHits) + testutil.ToFloat64(reg.CacheMisses)
	assert.Equal(t, 1.0, lookups)

	do(srv, http.MethodGet, "/api/v1/page", "", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheRefreshes), "the second request is served from cache")
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, fixtureLoader(t), nil)

	rec := do(srv, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cold"`)

	do(srv, http.MethodGet, "/api/v1/constants", "", nil)
	rec = do(srv, http.MethodGet, "/healthz", "", nil)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, fixtureLoader(t), nil)
	do(srv, http.MethodGet, "/api/v1/constants", "", nil)

	rec := do(srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sogif_constants_cache_misses_total 1")
}

func TestPostLead(t *testing.T) {
	submitter := &fakeLeads{}
	srv, _ := newTestServer(t, fixtureLoader(t), submitter)

	rec := do(srv, http.MethodPost, "/api/v1/leads", `{"email":"jane@example.com","investment_min_k":50,"investment_max_k":100}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "6f1c1f9e-8d0c-4a57-9d4b-8a3f4b2c1d00")
	require.Len(t, submitter.got, 1)
	require.NotNil(t, submitter.got[0].InvestmentMaxK)
	assert.Equal(t, 100, *submitter.got[0].InvestmentMaxK)

	rec = do(srv, http.MethodPost, "/api/v1/leads", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostLeadErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&leads.ValidationError{Field: "email", Message: "is required"}, http.StatusBadRequest, "INVALID_LEAD"},
		{leads.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{leads.ErrBotCheck, http.StatusForbidden, "BOT_CHECK_FAILED"},
		{errors.New("db down"), http.StatusInternalServerError, "LEAD_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			srv, _ := newTestServer(t, fixtureLoader(t), &fakeLeads{err: tc.err})
			rec := do(srv, http.MethodPost, "/api/v1/leads", `{"email":"x"}`, nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.code)
		})
	}
}

func TestLeadRouteAbsentWithoutService(t *testing.T) {
	srv, _ := newTestServer(t, fixtureLoader(t), nil)
	rec := do(srv, http.MethodPost, "/api/v1/leads", `{"email":"a@b.co"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, fixtureLoader(t), &fakeLeads{})

	rec := do(srv, http.MethodOptions, "/api/v1/leads", "", map[string]string{
		"Origin":                        "https://sogif.example",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://sogif.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(srv, http.MethodGet, "/api/v1/constants", "", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	srv, _ := newTestServer(t, fixtureLoader(t), nil)
	srv.engine.GET("/boom", func(c *gin.Context) {
		provider(c).MustUse()
	})

	rec := do(srv, http.MethodGet, "/boom", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}
