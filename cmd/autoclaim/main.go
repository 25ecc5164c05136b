package main

import (
	"os"

	"github.com/aatumaykin/autoclaim/internal/instance"
	"github.com/aatumaykin/autoclaim/internal/version"
)

var (
	Version   string = "0.1.0-dev"
	BuildTime string = "unknown"
	GitCommit string = "unknown"
	GoVersion string = "unknown"
)

func init() {
	version.SetInfo(Version, BuildTime, GitCommit, GoVersion)
}

func main() {
	// A spawned agent has no terminal to print usage to.
	if instance.RoleFromArgs(os.Args[1:]) == instance.RoleAutostart {
		rootCmd.SilenceErrors = true
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
