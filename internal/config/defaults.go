package config

import "github.com/aatumaykin/autoclaim/internal/constants"

// Default returns a configuration with every default applied and paths
// expanded, as used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	_ = expandEnvVars(cfg)
	return cfg
}

func applyDefaults(c *Config) {
	if c.Workspace.Path == "" {
		c.Workspace.Path = constants.DefaultWorkspacePath
	}
	if c.Workspace.Product == "" {
		c.Workspace.Product = constants.DefaultProduct
	}

	if c.Agent.Program == "" {
		c.Agent.Program = constants.DefaultProgram
	}

	if c.RPC.CallTimeoutSeconds == 0 {
		c.RPC.CallTimeoutSeconds = constants.DefaultCallTimeoutSec
	}

	if c.Chain.BlocksBehind == 0 {
		c.Chain.BlocksBehind = constants.DefaultBlocksBehind
	}
	if c.Chain.ExpireSeconds == 0 {
		c.Chain.ExpireSeconds = constants.DefaultExpireSeconds
	}
	if c.Chain.ExplorerURL == "" {
		c.Chain.ExplorerURL = constants.DefaultExplorerURL
	}

	if c.Credentials.Service == "" {
		c.Credentials.Service = constants.DefaultCredentialSvc
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "line"
	}

	if c.Notify.Telegram.SendTimeoutSeconds == 0 {
		c.Notify.Telegram.SendTimeoutSeconds = 10
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = "127.0.0.1:9477"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "autoclaim"
	}

	if c.Power.CheckIntervalSeconds == 0 {
		c.Power.CheckIntervalSeconds = 30
	}
	if c.Power.DriftThresholdSeconds == 0 {
		c.Power.DriftThresholdSeconds = 60
	}
}
