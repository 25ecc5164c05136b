package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/aatumaykin/autoclaim/internal/constants"
	"github.com/aatumaykin/autoclaim/internal/jobstore"
	"github.com/aatumaykin/autoclaim/internal/logger"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Validate and inspect the agent configuration.`,
}

// configValidateCmd validates the agent config and the job store.
var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file and job store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			configPath = args[0]
		}
		out := cmd.OutOrStdout()

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(out, constants.MsgConfigLoadError, err)
			return err
		}

		errs := cfg.Validate()
		if ac, err := jobstore.New(cfg.JobStorePath(), logger.Nop()).Load(); err == nil {
			errs = append(errs, ac.Validate()...)
		} else if !jobstore.IsMissing(err) {
			errs = append(errs, err)
		}

		if len(errs) > 0 {
			fmt.Fprint(out, constants.MsgConfigValidationError)
			for _, e := range errs {
				fmt.Fprintf(out, constants.MsgConfigValidatePrefix, e)
			}
			return fmt.Errorf("%d validation errors", len(errs))
		}

		fmt.Fprintln(out, constants.MsgConfigValid)
		return nil
	},
}

// configShowCmd prints the effective configuration with secrets masked.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (secrets masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg.Masked())
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
