// Package config provides configuration loading and validation for the
// autoclaim agent. It supports TOML configuration files with environment
// variable expansion, default values, and validation.
//
// Configuration structure:
//   - [workspace]: directory holding the job store, role markers and logs
//   - [agent]: served reward program and launch behaviour
//   - [rpc]: endpoint failover policy
//   - [chain]: transaction submission parameters
//   - [credentials]: signing key store
//   - [logging]: logging level, format, and output
//   - [notify]: notification sinks
//   - [metrics]: Prometheus exporter
//   - [power]: suspend/resume detection
//
// Environment variables can be referenced using ${VAR} or ${VAR:default}
// syntax, for example: passphrase = "${AUTOCLAIM_PASSPHRASE}"
package config

import (
	"path/filepath"
	"time"

	"github.com/aatumaykin/autoclaim/internal/constants"
)

// Config represents the agent configuration.
type Config struct {
	Workspace   WorkspaceConfig   `toml:"workspace"`
	Agent       AgentConfig       `toml:"agent"`
	RPC         RPCConfig         `toml:"rpc"`
	Chain       ChainConfig       `toml:"chain"`
	Credentials CredentialsConfig `toml:"credentials"`
	Logging     LoggingConfig     `toml:"logging"`
	Notify      NotifyConfig      `toml:"notify"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Power       PowerConfig       `toml:"power"`
}

// WorkspaceConfig locates the shared state directory.
type WorkspaceConfig struct {
	Path    string `toml:"path"`
	Product string `toml:"product"`
}

// AgentConfig controls what the agent schedules and how it is launched.
type AgentConfig struct {
	Program           string `toml:"program"`
	SpawnAgent        *bool  `toml:"spawn_agent"`
	RegisterAutostart bool   `toml:"register_autostart"`
}

// RPCConfig is the endpoint failover policy.
type RPCConfig struct {
	CallTimeoutSeconds int   `toml:"call_timeout_seconds"`
	TimeoutIsTransient *bool `toml:"timeout_is_transient"`
}

// ChainConfig holds transaction submission parameters.
type ChainConfig struct {
	BlocksBehind  int    `toml:"blocks_behind"`
	ExpireSeconds int    `toml:"expire_seconds"`
	ExplorerURL   string `toml:"explorer_url"`
}

// CredentialsConfig configures the encrypted key store.
type CredentialsConfig struct {
	Service    string `toml:"service"`
	Dir        string `toml:"dir"`
	Passphrase string `toml:"passphrase"`
}

// LoggingConfig configures the decision log.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// NotifyConfig lists notification sinks. The log sink is always active.
type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

// TelegramConfig configures the Telegram notification sink.
type TelegramConfig struct {
	Enabled            bool   `toml:"enabled"`
	Token              string `toml:"token"`
	ChatID             int64  `toml:"chat_id"`
	SendTimeoutSeconds int    `toml:"send_timeout_seconds"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Listen    string `toml:"listen"`
	Namespace string `toml:"namespace"`
}

// PowerConfig configures suspend/resume detection.
type PowerConfig struct {
	CheckIntervalSeconds  int `toml:"check_interval_seconds"`
	DriftThresholdSeconds int `toml:"drift_threshold_seconds"`
}

// JobStorePath returns the path of autoclaim.json.
func (c *Config) JobStorePath() string {
	return filepath.Join(c.Workspace.Path, constants.JobStoreFile)
}

// CredentialsDir returns the key store directory.
func (c *Config) CredentialsDir() string {
	if c.Credentials.Dir != "" {
		return c.Credentials.Dir
	}
	return filepath.Join(c.Workspace.Path, constants.CredentialsSubdirectory)
}

// DefaultLogPath returns "<workspace>/<product>-autoclaim.log".
func (c *Config) DefaultLogPath() string {
	return filepath.Join(c.Workspace.Path, c.Workspace.Product+"-"+constants.LogFileSuffix)
}

// CallTimeout returns the per-endpoint attempt timeout; zero means none.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.RPC.CallTimeoutSeconds) * time.Second
}

// TimeoutTransient reports whether a timed-out endpoint should be failed over.
func (c *Config) TimeoutTransient() bool {
	return c.RPC.TimeoutIsTransient == nil || *c.RPC.TimeoutIsTransient
}

// ShouldSpawnAgent reports whether the interactive role launches the agent.
func (c *Config) ShouldSpawnAgent() bool {
	return c.Agent.SpawnAgent == nil || *c.Agent.SpawnAgent
}
