package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/shopsynth/internal/config"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
)

const minimal = `
version: "1"
database: {driver: memory}
event_log: {driver: memory}
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := config.Parse("test.yaml", []byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 2*time.Second, cfg.Orchestrator.Stagger)
	assert.Equal(t, 10*time.Second, cfg.Orchestrator.DependencyPoll)
	assert.Equal(t, 5*time.Second, cfg.Orchestrator.RestartCooldown)
	require.NotNil(t, cfg.Policies)
	assert.Equal(t, policy.Default().Users.NewUserChance, cfg.Policies.Users.NewUserChance)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("SHOPSYNTH_TEST_DSN", "postgres://shop:secret@db:5432/shop")
	cfg, err := config.Parse("test.yaml", []byte(`
version: "1"
database:
  driver: postgres
  dsn: "${SHOPSYNTH_TEST_DSN}"
event_log: {driver: memory}
`))
	require.NoError(t, err)
	assert.Equal(t, "postgres://shop:secret@db:5432/shop", cfg.Database.DSN)
}

func TestPolicyOverridesMergeKeyByKey(t *testing.T) {
	cfg, err := config.Parse("test.yaml", []byte(minimal+`
policies:
  users:
    update_kinds: {user_update: 5}
  intervals:
    user: {kind: fixed, mean: 3s}
  failures:
    quality_issue_rate: 0.05
`))
	require.NoError(t, err)

	def := policy.Default()
	kinds := cfg.Policies.Users.UpdateKinds
	assert.Equal(t, 5.0, kinds["user_update"])
	assert.Len(t, kinds, len(def.Users.UpdateKinds))
	assert.Equal(t, policy.Fixed(3*time.Second), cfg.Policies.Intervals[policy.GenUser])
	assert.Equal(t, def.Intervals[policy.GenSession], cfg.Policies.Intervals[policy.GenSession])
	assert.Equal(t, 0.05, cfg.Policies.Failures.QualityIssueRate)
	assert.Equal(t, def.Failures.PublishFailureRate, cfg.Policies.Failures.PublishFailureRate)
}

func TestSchemaRejectsUnknownKeys(t *testing.T) {
	_, err := config.Parse("test.yaml", []byte(minimal+"bogus: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config schema errors")

	_, err = config.Parse("test.yaml", []byte(minimal+"generators: {warehouse: true}\n"))
	assert.Error(t, err)
}

func TestSchemaRejectsOutOfRangeValues(t *testing.T) {
	for name, doc := range map[string]string{
		"probability": "policies: {failures: {quality_issue_rate: 1.5}}\n",
		"weight":      "policies: {carts: {statuses: {active: -1}}}\n",
		"duration":    "orchestrator: {stagger: soon}\n",
		"enum":        "log: {format: xml}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse("test.yaml", []byte(minimal+doc))
			assert.Error(t, err)
		})
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	_, err := config.Parse("test.yaml", []byte(`
version: "1"
database: {driver: postgres}
event_log: {driver: kafka}
pipeline:
  rules:
    orders: ["payload.total_amount >="]
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "config validation errors:\n  - ")
	assert.Contains(t, msg, "database.dsn is required for driver postgres")
	assert.Contains(t, msg, "event_log.brokers must not be empty")
	assert.Contains(t, msg, "pipeline.rules")
}

func TestValidateRequiresVersion(t *testing.T) {
	cfg := config.Default()
	assert.EqualError(t, config.Validate(cfg), "config: version is required")
}

func TestValidateReportsPolicyProblems(t *testing.T) {
	cfg := config.Default()
	cfg.Version = "1"
	cfg.Database.Driver = "memory"
	cfg.EventLog.Driver = "memory"
	cfg.Policies.Categories.MaxDepth = 0

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policies.categories.max_depth")
}

func TestEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.Generators = map[string]bool{policy.GenOrder: false, policy.GenUser: true}
	got := cfg.Enabled([]string{policy.GenCart, policy.GenOrder, policy.GenUser})
	assert.Equal(t, []string{policy.GenCart, policy.GenUser}, got)
}

func TestLoaderReloadSwapsPolicies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shopsynth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))

	l, err := config.NewLoader(path, nil)
	require.NoError(t, err)
	src := policy.NewSource(l.Config().Policies)
	l.BindPolicies(src)

	require.NoError(t, os.WriteFile(path, []byte(minimal+"policies: {users: {new_user_chance: 0.9}}\n"), 0o600))
	cfg, err := l.Reload()
	require.NoError(t, err)
	assert.Same(t, cfg, l.Config())
	assert.Equal(t, 0.9, src.Load().Users.NewUserChance)

	require.NoError(t, os.WriteFile(path, []byte("version: [\n"), 0o600))
	_, err = l.Reload()
	require.Error(t, err)
	assert.Same(t, cfg, l.Config(), "a rejected file keeps the previous config")
	assert.Equal(t, 0.9, src.Load().Users.NewUserChance)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestShippedConfigLoads(t *testing.T) {
	t.Setenv("SHOPSYNTH_DATABASE_DSN", "postgres://shop@localhost:5432/shop?sslmode=disable")
	t.Setenv("SHOPSYNTH_EVENT_LOG_DSN", "postgres://shop@localhost:5432/events?sslmode=disable")
	t.Setenv("SHOPSYNTH_DEAD_LETTER_DSN", "")

	cfg, err := config.Load(filepath.Join("..", "..", "configs", "shopsynth.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://shop@localhost:5432/shop?sslmode=disable", cfg.Database.DSN)
	assert.Empty(t, cfg.DeadLetter.DSN)
	assert.Equal(t, 0.01, cfg.Policies.Failures.PublishFailureRate)
	assert.Equal(t, policy.Default().Intervals[policy.GenCart], cfg.Policies.Intervals[policy.GenCart])
	assert.Len(t, cfg.Pipeline.Rules["orders"], 1)
}
