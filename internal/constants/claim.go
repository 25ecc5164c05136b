package constants

import "time"

// Claim scheduling constants.

// ClaimWindow is the interval after which a claim becomes valid again.
const ClaimWindow = 24 * time.Hour

// RetryDelay is how long the agent waits before re-evaluating a job whose
// last attempt failed or whose chain state could not be read.
const RetryDelay = 10 * time.Minute

// DefaultProgram is the reward program the agent serves.
const DefaultProgram = "WAX-GBM"

// Transaction submission defaults.
const (
	DefaultBlocksBehind   = 3
	DefaultExpireSeconds  = 30
	DefaultExplorerURL    = "https://wax.bloks.io/transaction/"
	DefaultCredentialSvc  = "simpleos"
	DefaultCallTimeoutSec = 20
)

// AutostartFlag is the launch argument that selects the autostart role.
const AutostartFlag = "--autostart"

// MaxAccountNameLength is the longest valid EOSIO account name.
const MaxAccountNameLength = 13
