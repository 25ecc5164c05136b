package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
[workspace]
path = "`+dir+`"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Workspace.Path)
	assert.Equal(t, "simpleos", cfg.Workspace.Product)
	assert.Equal(t, "WAX-GBM", cfg.Agent.Program)
	assert.Equal(t, 3, cfg.Chain.BlocksBehind)
	assert.Equal(t, 30, cfg.Chain.ExpireSeconds)
	assert.Equal(t, 20*time.Second, cfg.CallTimeout())
	assert.True(t, cfg.TimeoutTransient())
	assert.True(t, cfg.ShouldSpawnAgent())
	assert.Equal(t, "line", cfg.Logging.Format)
	assert.Equal(t, filepath.Join(dir, "simpleos-autoclaim.log"), cfg.Logging.Output)
	assert.Equal(t, filepath.Join(dir, "autoclaim.json"), cfg.JobStorePath())
	assert.Equal(t, filepath.Join(dir, "keys"), cfg.CredentialsDir())
	assert.Empty(t, cfg.Validate())
}

func TestLoad_ExplicitPolicy(t *testing.T) {
	path := writeConfig(t, `
[rpc]
call_timeout_seconds = 5
timeout_is_transient = false

[agent]
spawn_agent = false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.CallTimeout())
	assert.False(t, cfg.TimeoutTransient())
	assert.False(t, cfg.ShouldSpawnAgent())
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("AUTOCLAIM_TEST_PASS", "hunter2hunter2")
	path := writeConfig(t, `
[credentials]
passphrase = "${AUTOCLAIM_TEST_PASS}"

[notify.telegram]
token = "${AUTOCLAIM_TEST_MISSING:123456:abcdefghijklmnop}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hunter2hunter2", cfg.Credentials.Passphrase)
	assert.Equal(t, "123456:abcdefghijklmnop", cfg.Notify.Telegram.Token)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, "[workspace\npath = 1")

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "WAX-GBM", cfg.Agent.Program)
	assert.False(t, strings.HasPrefix(cfg.Workspace.Path, "~"))
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "loud"
	cfg.Chain.ExpireSeconds = 0
	cfg.RPC.CallTimeoutSeconds = -1
	cfg.Notify.Telegram.Enabled = true
	cfg.Notify.Telegram.Token = "not-a-token"
	cfg.Power.DriftThresholdSeconds = 1

	errs := cfg.Validate()

	var joined []string
	for _, e := range errs {
		joined = append(joined, e.Error())
	}
	all := strings.Join(joined, "\n")
	assert.Contains(t, all, "logging.level")
	assert.Contains(t, all, "chain.expire_seconds")
	assert.Contains(t, all, "rpc.call_timeout_seconds")
	assert.Contains(t, all, "notify.telegram.token")
	assert.Contains(t, all, "notify.telegram.chat_id")
	assert.Contains(t, all, "power.drift_threshold_seconds")
	assert.NotContains(t, all, "not-a-token")
}

func TestMasked(t *testing.T) {
	cfg := Default()
	cfg.Credentials.Passphrase = "correcthorsebattery"
	cfg.Notify.Telegram.Token = "123456:abcdefghijklmnop"

	masked := cfg.Masked()

	assert.Equal(t, "corr***********tery", masked.Credentials.Passphrase)
	assert.Equal(t, "123456:abcd********mnop", masked.Notify.Telegram.Token)
	assert.Equal(t, "correcthorsebattery", cfg.Credentials.Passphrase)
}

func TestLoadEnvOptional(t *testing.T) {
	assert.NoError(t, LoadEnvOptional(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nAUTOCLAIM_ENV_TEST=\"value\"\n\nbroken\n"), 0600))
	t.Setenv("AUTOCLAIM_ENV_TEST", "")

	require.NoError(t, LoadEnvOptional(path))
	assert.Equal(t, "value", os.Getenv("AUTOCLAIM_ENV_TEST"))
}
