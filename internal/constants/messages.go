package constants

// Notification titles and bodies.
const (
	// MsgClaimExecutedTitle is the title of the success notification.
	MsgClaimExecutedTitle = "Auto-claim executed"

	// MsgClaimErrorTitle is the title of the failure notification.
	MsgClaimErrorTitle = "Auto-claim error"

	// MsgClaimAccountBody formats the success notification body.
	MsgClaimAccountBody = "Account: %s"

	// MsgClaimErrorBody formats the failure notification body.
	MsgClaimErrorBody = "Account: %s\nError: %s"
)

// CLI messages
const (
	// MsgConfigLoadError is the error message when configuration loading fails.
	MsgConfigLoadError = "❌ Failed to load configuration: %v\n"

	// MsgConfigValidationError is the message when configuration validation fails.
	MsgConfigValidationError = "❌ Configuration validation failed:\n"

	// MsgConfigValid is the message when configuration is successfully loaded and validated.
	MsgConfigValid = "✅ Configuration loaded"

	// MsgConfigValidatePrefix is the prefix for configuration validation errors.
	MsgConfigValidatePrefix = "  - %v\n"

	// MsgAlreadyRunning is printed when another process already holds the role.
	MsgAlreadyRunning = "another %s process is already running (pid %d)\n"
)

// Job management messages
const (
	MsgJobAdded      = "✅ Job added: %s (%s@%s)\n"
	MsgJobUpdated    = "✅ Job updated: %s (%s@%s)\n"
	MsgJobRemoved    = "✅ Job removed: %s\n"
	MsgJobNotFound   = "job not found: %s"
	MsgNoJobs        = "No claim jobs configured."
	MsgJobsTotal     = "Total: %d job(s)\n"
	MsgAutoClaimOn   = "✅ Auto claim enabled"
	MsgAutoClaimOff  = "⏸  Auto claim disabled"
	MsgAgentLaunched = "🚀 Agent launched (pid %d)\n"
	MsgAgentSkipped  = "Agent not launched: %s\n"
)

// Key store messages
const (
	MsgKeyPrompt    = "Private key (WIF): "
	MsgKeyImported  = "🔑 Key stored for %s\n"
	MsgKeyRemoved   = "🔑 Key removed: %s\n"
	MsgNoKeys       = "No keys stored."
	MsgKeyMismatch  = "private key belongs to %s, not %s"
	MsgNoPassphrase = "credentials.passphrase is not set (use ${AUTOCLAIM_PASSPHRASE} in the config)"
)
