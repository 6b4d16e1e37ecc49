package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/futuretree/internal/catalog"
	"github.com/sells-group/futuretree/internal/config"
	"github.com/sells-group/futuretree/internal/contradiction"
	"github.com/sells-group/futuretree/internal/matcher"
	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/monitoring"
	"github.com/sells-group/futuretree/internal/outcome"
	"github.com/sells-group/futuretree/internal/pathmetrics"
	"github.com/sells-group/futuretree/internal/recalc"
	"github.com/sells-group/futuretree/internal/scorer"
	"github.com/sells-group/futuretree/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type testEnv struct {
	st      *store.SQLiteStore
	handler http.Handler
}

func newTestEnv(t *testing.T, serverCfg config.ServerConfig) *testEnv {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	c, err := catalog.Load()
	require.NoError(t, err)
	_, err = catalog.Seed(ctx, st, c)
	require.NoError(t, err)

	sm, err := scorer.New(scorer.DefaultScorerConfig())
	require.NoError(t, err)
	sched := recalc.New(st, config.RecalcConfig{ThresholdOutcomes: 5, JobTimeoutSecs: 30, MaxConcurrent: 2}, pathmetrics.DefaultConfig())

	srv := New(Deps{
		Store:     st,
		Matcher:   matcher.New(sm),
		Options:   matcher.DefaultOptions(),
		Recalc:    sched,
		Outcomes:  outcome.NewService(st, sched),
		Collector: monitoring.NewCollector(st, 0),
		Policy:    contradiction.DefaultPolicy(),
		Server:    serverCfg,
	})
	return &testEnv{st: st, handler: srv.Routes()}
}

func defaultServerConfig() config.ServerConfig {
	return config.ServerConfig{
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

type apiError struct {
	Error struct {
		Kind    string             `json:"kind"`
		Message string             `json:"message"`
		Fields  []model.FieldError `json:"fields"`
		JobID   string             `json:"jobId"`
	} `json:"error"`
}

func errorOf(t *testing.T, rr *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	decodeBody(t, rr, &e)
	return e
}

func videoPayload() map[string]any {
	return map[string]any{
		"industry":         "Video Production",
		"companySize":      "2-5",
		"currentRevenue":   "250k_500k",
		"skills":           []string{"editing", "motion graphics"},
		"biggestChallenge": "inconsistent lead flow",
	}
}

type discoverResult struct {
	Profile    model.BusinessProfile `json:"profile"`
	Matches    []matcher.APIMatch    `json:"matches"`
	Summary    *matcher.Summary      `json:"summary"`
	RedirectTo string                `json:"redirectTo"`
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	rr := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestDiscover_CreatesProfileAndMatches(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	rr := env.do(t, http.MethodPost, "/discover", videoPayload())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var res discoverResult
	decodeBody(t, rr, &res)
	require.NotEmpty(t, res.Profile.ID)
	assert.Equal(t, "video_production", res.Profile.Industry)
	require.NotNil(t, res.Profile.Analysis)
	assert.Equal(t, "/discover?profileId="+res.Profile.ID, res.RedirectTo)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 11, res.Summary.TotalCandidates)

	require.GreaterOrEqual(t, len(res.Matches), 2)
	assert.Contains(t, []string{"cs-vs-dental-video", "cs-pe-video-agency"}, res.Matches[0].CaseStudyID)
	for i := 1; i < len(res.Matches); i++ {
		assert.GreaterOrEqual(t, res.Matches[i-1].MatchScore, res.Matches[i].MatchScore)
		assert.Equal(t, i+1, res.Matches[i].Rank)
	}

	// The stored matches come back in the same order with the same scores.
	rr = env.do(t, http.MethodGet, res.RedirectTo, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var stored discoverResult
	decodeBody(t, rr, &stored)
	assert.Equal(t, res.Profile.ID, stored.Profile.ID)
	require.Len(t, stored.Matches, len(res.Matches))
	for i := range res.Matches {
		assert.Equal(t, res.Matches[i].CaseStudyID, stored.Matches[i].CaseStudyID)
		assert.InDelta(t, res.Matches[i].MatchScore, stored.Matches[i].MatchScore, 1e-9)
		assert.NotEmpty(t, stored.Matches[i].MatchReason)
	}
}

func TestDiscover_BodyKeysAreCamelCase(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	rr := env.do(t, http.MethodPost, "/discover", videoPayload())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var raw map[string]any
	decodeBody(t, rr, &raw)
	matches, ok := raw["matches"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, matches)
	first := matches[0].(map[string]any)
	assert.Contains(t, first, "matchScore")
	assert.Contains(t, first, "matchReason")
	assert.Contains(t, first, "caseStudyId")

	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		switch v := v.(type) {
		case map[string]any:
			for k, child := range v {
				assert.NotContains(t, k, "_", "key %s%s", prefix, k)
				walk(prefix+k+".", child)
			}
		case []any:
			for _, child := range v {
				walk(prefix, child)
			}
		}
	}
	walk("", raw)
}

func TestDiscover_Validation(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	rr := env.do(t, http.MethodPost, "/discover", map[string]any{"companySize": "huge"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	e := errorOf(t, rr)
	assert.Equal(t, "validation", e.Error.Kind)
	var fields []string
	for _, f := range e.Error.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"industry", "companySize", "currentRevenue"}, fields)

	req := httptest.NewRequest(http.MethodPost, "/discover", bytes.NewBufferString("{not json"))
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "body", errorOf(t, rr).Error.Fields[0].Field)
}

func TestGetDiscover(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())
	ctx := context.Background()

	rr := env.do(t, http.MethodGet, "/discover", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/discover?profileId=missing", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", errorOf(t, rr).Error.Kind)

	// A profile stored without matches has them computed on demand.
	prof := &model.BusinessProfile{Industry: "photography", CompanySize: model.TeamSolo, CurrentRevenue: model.RevenueUnder100K}
	require.NoError(t, env.st.CreateProfile(ctx, prof))

	rr = env.do(t, http.MethodGet, "/discover?profileId="+prof.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res discoverResult
	decodeBody(t, rr, &res)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "cs-cl-photo-blog", res.Matches[0].CaseStudyID)
	require.NotNil(t, res.Profile.Analysis)

	stored, err := env.st.ListMatches(ctx, prof.ID)
	require.NoError(t, err)
	assert.Len(t, stored, len(res.Matches))
}

func TestDiscover_RateLimited(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 1})

	rr := env.do(t, http.MethodPost, "/discover", videoPayload())
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, http.MethodPost, "/discover", videoPayload())
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "rate_limited", errorOf(t, rr).Error.Kind)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	// Reads are not limited.
	rr = env.do(t, http.MethodGet, "/paths", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestDiscover_RateLimitKeyedByIP(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 1})

	post := func(remote string) int {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(videoPayload()))
		req := httptest.NewRequest(http.MethodPost, "/discover", &buf)
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		return rr.Code
	}

	// A fresh source port does not buy a fresh bucket.
	assert.Equal(t, http.StatusCreated, post("10.0.0.1:40001"))
	assert.Equal(t, http.StatusTooManyRequests, post("10.0.0.1:40002"))
	assert.Equal(t, http.StatusTooManyRequests, post("10.0.0.1:40003"))

	assert.Equal(t, http.StatusCreated, post("10.0.0.2:40001"))
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"10.0.0.1:40001", "10.0.0.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"10.0.0.1", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			assert.Equal(t, tt.want, clientKey(req))
		})
	}
}

func TestClientLimiters_EvictsIdleClients(t *testing.T) {
	c := newClientLimiters(rate.Limit(1), 1)
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, c.allow("10.0.0.1", t0))
	assert.False(t, c.allow("10.0.0.1", t0))
	assert.True(t, c.allow("10.0.0.2", t0))
	assert.Equal(t, 2, c.size())

	later := t0.Add(limiterIdle)
	assert.True(t, c.allow("10.0.0.3", later))
	assert.Equal(t, 1, c.size())

	// An evicted client comes back with a full bucket.
	assert.True(t, c.allow("10.0.0.1", later))
}

func TestClientLimiters_IdleCoversRefill(t *testing.T) {
	c := newClientLimiters(rate.Limit(0.001), 5)
	assert.Equal(t, 5000*time.Second, c.idle)

	c = newClientLimiters(rate.Limit(100), 0)
	assert.Equal(t, 1, c.burst)
	assert.Equal(t, limiterIdle, c.idle)
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	req := httptest.NewRequest(http.MethodOptions, "/paths", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
