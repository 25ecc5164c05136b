package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the failover policy.
func (c *RPCConfig) Validate() error {
	if c.CallTimeoutSeconds < 0 || c.CallTimeoutSeconds > 300 {
		return fmt.Errorf("rpc.call_timeout_seconds must be between 0 and 300 (got %d)", c.CallTimeoutSeconds)
	}
	return nil
}

// Validate checks transaction submission parameters.
func (c *ChainConfig) Validate() error {
	if c.BlocksBehind < 0 || c.BlocksBehind > 360 {
		return fmt.Errorf("chain.blocks_behind must be between 0 and 360 (got %d)", c.BlocksBehind)
	}
	if c.ExpireSeconds < 1 || c.ExpireSeconds > 3600 {
		return fmt.Errorf("chain.expire_seconds must be between 1 and 3600 (got %d)", c.ExpireSeconds)
	}
	if c.ExplorerURL != "" {
		u, err := url.Parse(c.ExplorerURL)
		if err != nil || !strings.HasPrefix(u.Scheme, "http") {
			return fmt.Errorf("chain.explorer_url must be an http(s) URL")
		}
	}
	return nil
}
