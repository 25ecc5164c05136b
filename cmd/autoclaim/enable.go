package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/autoclaim/internal/constants"
	"github.com/aatumaykin/autoclaim/internal/jobstore"
)

var noLaunch bool

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turn auto claim on and launch the agent if needed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setEnabled(cmd, true); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), constants.MsgAutoClaimOn)
		if noLaunch {
			return nil
		}

		_, a, err := withApp(cmd)
		if err != nil {
			return err
		}
		d, err := a.EnsureAgent()
		if err != nil {
			return err
		}
		if d.Spawned {
			fmt.Fprintf(cmd.OutOrStdout(), constants.MsgAgentLaunched, d.PID)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), constants.MsgAgentSkipped, d.Reason)
		}
		return nil
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn auto claim off",
	Long: `Turn auto claim off. A running agent keeps its timers until it is
restarted; on its next start it exits immediately.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setEnabled(cmd, false); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), constants.MsgAutoClaimOff)
		return nil
	},
}

func setEnabled(cmd *cobra.Command, enabled bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return jobstore.New(cfg.JobStorePath(), cliLogger(cmd)).Update(func(ac *jobstore.AutoClaimConfig) error {
		ac.Enabled = enabled
		return nil
	})
}

func init() {
	enableCmd.Flags().BoolVar(&noLaunch, "no-launch", false, "Do not launch the agent")
}
