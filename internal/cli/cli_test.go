package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/shopsynth/internal/config"
	"github.com/gyaneshwarpardhi/shopsynth/internal/deadletter"
	"github.com/gyaneshwarpardhi/shopsynth/internal/deadletter/spool"
	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/generator"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store/memstore"
)

func writeConfig(t *testing.T, body string) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "shopsynth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, dir
}

func memoryConfig(spoolPath string) string {
	return `version: "1"
http:
  addr: "127.0.0.1:0"
  shutdown_timeout: 2s
database:
  driver: memory
event_log:
  driver: memory
dead_letter:
  spool_path: "` + spoolPath + `"
orchestrator:
  stagger: 10ms
  dependency_poll: 20ms
`
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "shopsynth", cmd.Use)

	for _, path := range [][]string{{"generate"}, {"consume"}, {"deadletter", "sweep"}, {"deadletter", "list"}, {"migrate"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	cfg := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, "configs/shopsynth.yaml", cfg.DefValue)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-format"))

	gen, _, err := cmd.Find([]string{"generate"})
	require.NoError(t, err)
	assert.Equal(t, "false", gen.Flags().Lookup("dry-run").DefValue)
	assert.NotNil(t, gen.Flags().Lookup("only"))

	sweep, _, err := cmd.Find([]string{"deadletter", "sweep"})
	require.NoError(t, err)
	assert.NotNil(t, sweep.Flags().Lookup("once"))
	assert.NotNil(t, sweep.Flags().Lookup("limit"))
}

func TestInvalidLogFlags(t *testing.T) {
	_, err := execute(t, context.Background(), "migrate", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")

	_, err = execute(t, context.Background(), "migrate", "--log-format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format")
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, context.Background(), "deadletter", "list", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDeadLetterList(t *testing.T) {
	spoolPath := filepath.Join(t.TempDir(), "spool.db")
	path, _ := writeConfig(t, memoryConfig(spoolPath))

	out, err := execute(t, context.Background(), "deadletter", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "no pending dead letters")

	sp, err := spool.Open(spoolPath)
	require.NoError(t, err)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, sp.Quarantine(context.Background(), deadletter.Entry{
		ID: "dl-1", Topic: event.TopicOrders, EventID: "e-42", EventType: "order_create",
		Payload: []byte(`{}`), FirstSeenAt: at, LastAttemptAt: at, LastError: "broker down",
	}))
	require.NoError(t, sp.Close())

	out, err = execute(t, context.Background(), "deadletter", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "e-42")
	assert.Contains(t, out, "broker down")
	assert.Contains(t, out, "2024-03-01T10:00:00Z")
}

func TestMigrateMemoryOnlyCreatesSpool(t *testing.T) {
	spoolPath := filepath.Join(t.TempDir(), "spool.db")
	path, _ := writeConfig(t, memoryConfig(spoolPath))

	out, err := execute(t, context.Background(), "migrate", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "migrated dead-letter spool\n", out)
	assert.FileExists(t, spoolPath)
}

func TestConsumeNeedsDurableLog(t *testing.T) {
	path, _ := writeConfig(t, memoryConfig(filepath.Join(t.TempDir(), "spool.db")))
	_, err := execute(t, context.Background(), "consume", "--config", path)
	assert.ErrorIs(t, err, ErrNoDurableLog)

	_, err = execute(t, context.Background(), "consume", "--config", path, "--topics", "nope")
	assert.ErrorIs(t, err, ErrUnknownTopic)
}

func TestGenerateDryRunStopsOnCancel(t *testing.T) {
	path, _ := writeConfig(t, memoryConfig(filepath.Join(t.TempDir(), "spool.db")))
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := execute(t, ctx, "generate", "--config", path, "--dry-run", "--only", "user,session")
	require.NoError(t, err)
}

func TestGenerateRejectsUnknownOnly(t *testing.T) {
	path, _ := writeConfig(t, memoryConfig(filepath.Join(t.TempDir(), "spool.db")))
	_, err := execute(t, context.Background(), "generate", "--config", path, "--dry-run", "--only", "robot")
	assert.ErrorIs(t, err, generator.ErrUnknownGenerator)
}

func TestSelectGenerators(t *testing.T) {
	cfg := config.Default()
	cfg.Generators = map[string]bool{"wishlist": false}

	run, err := selectGenerators(cfg, nil)
	require.NoError(t, err)
	assert.NotContains(t, run, "wishlist")
	assert.Len(t, run, len(generator.Names())-1)

	run, err = selectGenerators(cfg, []string{"user", "wishlist"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, run)

	_, err = selectGenerators(cfg, []string{"wishlist"})
	assert.ErrorIs(t, err, ErrNothingEnabled)
}

func TestConsumeTopics(t *testing.T) {
	cfg := config.Default()
	topics, err := consumeTopics(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, event.Topics(), topics)

	cfg.Pipeline.Topics = []string{event.TopicUsers}
	topics, err = consumeTopics(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{event.TopicUsers}, topics)

	topics, err = consumeTopics(cfg, []string{event.TopicOrders})
	require.NoError(t, err)
	assert.Equal(t, []string{event.TopicOrders}, topics)
}

func TestLoaderLogsThroughConfiguredFormat(t *testing.T) {
	path, _ := writeConfig(t, `version: "1"
log:
  format: json
http:
  addr: "127.0.0.1:9999"
database:
  driver: memory
event_log:
  driver: memory
`)
	var logs bytes.Buffer
	opts := &RootOptions{ConfigPath: path, Stderr: &logs}
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil))) })

	loader, logger, err := opts.loader()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", loader.Config().HTTP.Addr)

	logger.Info("ready")
	assert.Contains(t, logs.String(), `"msg":"ready"`)
}

func TestOpenRuntimeDryRunStaysInMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DSN = "postgres://nowhere.invalid/shop"
	cfg.EventLog.DSN = "postgres://nowhere.invalid/log"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gw, out, dlq, err := openRuntime(context.Background(), cfg, policy.NewSource(cfg.Policies), true, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeAll(gw, out, dlq) })

	assert.IsType(t, &memstore.Store{}, gw)
	assert.IsType(t, &deadletter.Memory{}, dlq)
}
