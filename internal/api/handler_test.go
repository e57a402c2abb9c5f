package api_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/shopsynth/internal/api"
	"github.com/gyaneshwarpardhi/shopsynth/internal/config"
	"github.com/gyaneshwarpardhi/shopsynth/internal/engine"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
)

type fakeEngine struct {
	running bool
	status  []engine.Status
}

func (f *fakeEngine) Running() bool             { return f.running }
func (f *fakeEngine) Snapshot() []engine.Status { return f.status }

type fakeReloader struct {
	src *policy.Source
	err error
}

func (f *fakeReloader) Reload() (*config.Config, error) {
	if f.err != nil {
		return nil, f.err
	}
	cfg := config.Default()
	cfg.Policies.Users.NewUserChance = 0.75
	f.src.Store(cfg.Policies)
	return cfg, nil
}

func serve(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthAndReadiness(t *testing.T) {
	eng := &fakeEngine{}
	h := api.New(eng, policy.NewSource(policy.Default()), nil, nil)

	rec, _ := serve(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := serve(t, h, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not running", body["status"])

	eng.running = true
	eng.status = []engine.Status{{Name: "user", State: engine.Running}}
	rec, _ = serve(t, h, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	eng.status = append(eng.status, engine.Status{Name: "cart", State: engine.Crashed})
	rec, body = serve(t, h, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, []any{"cart"}, body["crashed"])
}

func TestListGenerators(t *testing.T) {
	eng := &fakeEngine{running: true, status: []engine.Status{
		{Name: "user", State: engine.Running, Ticks: 3},
		{Name: "cart", State: engine.Waiting},
	}}
	h := api.New(eng, policy.NewSource(policy.Default()), nil, nil)

	rec, body := serve(t, h, http.MethodGet, "/v1/generators")
	require.Equal(t, http.StatusOK, rec.Code)
	gens := body["generators"].([]any)
	require.Len(t, gens, 2)
	first := gens[0].(map[string]any)
	assert.Equal(t, "user", first["name"])
	assert.Equal(t, "running", first["state"])
	assert.EqualValues(t, 3, first["ticks"])
}

func TestPoliciesAndReload(t *testing.T) {
	src := policy.NewSource(policy.Default())
	reloader := &fakeReloader{src: src}
	h := api.New(&fakeEngine{}, src, reloader, nil)

	rec, body := serve(t, h, http.MethodGet, "/v1/policies")
	require.Equal(t, http.StatusOK, rec.Code)
	users := body["users"].(map[string]any)
	assert.Equal(t, policy.Default().Users.NewUserChance, users["new_user_chance"])

	rec, _ = serve(t, h, http.MethodPost, "/v1/policies/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.75, src.Load().Users.NewUserChance)

	reloader.err = errors.New("config validation errors:\n  - policies.users.new_user_chance must be within [0, 1]")
	rec, body = serve(t, h, http.MethodPost, "/v1/policies/reload")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["error"], "new_user_chance")
	assert.Equal(t, 0.75, src.Load().Users.NewUserChance)
}

func TestReloadWithoutReloader(t *testing.T) {
	h := api.New(&fakeEngine{}, policy.NewSource(policy.Default()), nil, nil)
	rec, _ := serve(t, h, http.MethodPost, "/v1/policies/reload")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := api.New(&fakeEngine{}, policy.NewSource(policy.Default()), nil, nil)
	rec, _ := serve(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
