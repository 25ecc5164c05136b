package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/autoclaim/internal/autostart"
)

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Manage the login item that starts the agent",
}

func autostartEntry() (*autostart.Entry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return autostart.New(os.Getenv("AUTOCLAIM_AUTOSTART_DIR"), cfg.Workspace.Product)
}

var autostartEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Start the agent at login",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := autostartEntry()
		if err != nil {
			return err
		}
		exe, err := os.Executable()
		if err != nil {
			return err
		}
		var extra []string
		if configPath != "" {
			extra = []string{"--config", configPath}
		}
		if err := entry.Enable(exe, extra...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Autostart entry written: %s\n", entry.Path())
		return nil
	},
}

var autostartDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop starting the agent at login",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := autostartEntry()
		if err != nil {
			return err
		}
		if err := entry.Disable(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "⏸  Autostart entry removed")
		return nil
	},
}

var autostartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the agent starts at login",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := autostartEntry()
		if err != nil {
			return err
		}
		on, err := entry.Enabled()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", entry.Path(), onOff(on))
		return nil
	},
}

func init() {
	autostartCmd.AddCommand(autostartEnableCmd)
	autostartCmd.AddCommand(autostartDisableCmd)
	autostartCmd.AddCommand(autostartStatusCmd)
}
