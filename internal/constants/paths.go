package constants

// DefaultConfigPath is the default path to the agent config.toml file
const DefaultConfigPath = "~/.config/autoclaim/config.toml"

// DefaultWorkspacePath is the directory holding the job store, markers and logs.
// It matches the directory the wallet UI writes autoclaim.json into.
const DefaultWorkspacePath = "~/.config/simpleos-config"

// DefaultProduct is the product name used to derive marker and log file names.
const DefaultProduct = "simpleos"

// JobStoreFile is the filename of the persisted auto-claim configuration.
const JobStoreFile = "autoclaim.json"

// CredentialsSubdirectory holds encrypted signing keys inside the workspace.
const CredentialsSubdirectory = "keys"

// Marker file suffixes, appended to "<product>-".
const (
	InteractiveMarkerSuffix = "lockLFile"
	AutostartMarkerSuffix   = "lockALFile"
)

// LogFileSuffix is appended to "<product>-" to form the decision log name.
const LogFileSuffix = "autoclaim.log"

// Artifact filename prefixes, followed by unix milliseconds and ".txt".
const (
	ReceiptFilePrefix    = "autoclaim-trx-log_"
	DiagnosticFilePrefix = "autoclaim-error_"
)
