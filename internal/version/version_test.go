package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetInfo(t *testing.T) {
	originalVersion, originalBuildTime := Version, BuildTime
	originalGitCommit, originalGoVersion := GitCommit, GoVersion
	defer func() {
		Version, BuildTime = originalVersion, originalBuildTime
		GitCommit, GoVersion = originalGitCommit, originalGoVersion
	}()

	SetInfo("1.0.0", "2024-01-01T00:00:00Z", "abc123", "go1.26")

	assert.Equal(t, "1.0.0", Version)
	assert.Equal(t, "2024-01-01T00:00:00Z", BuildTime)
	assert.Equal(t, "abc123", GitCommit)
	assert.Equal(t, "go1.26", GoVersion)
}

func TestSetInfoEmptyValues(t *testing.T) {
	originalVersion := Version
	defer func() { Version = originalVersion }()

	Version = "test-version"
	SetInfo("", "", "", "")

	assert.Equal(t, "test-version", Version)
}

func TestFormatStartupMessage(t *testing.T) {
	originalVersion, originalBuildTime := Version, BuildTime
	defer func() { Version, BuildTime = originalVersion, originalBuildTime }()

	Version = "1.2.3"
	BuildTime = "2024-06-15T10:30:00Z"

	msg := FormatStartupMessage()
	assert.Contains(t, msg, "1.2.3")
	assert.Contains(t, msg, "2024-06-15T10:30:00Z")
	assert.Contains(t, msg, "autoclaim")
}
