package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/autoclaim/internal/app"
	"github.com/aatumaykin/autoclaim/internal/config"
	"github.com/aatumaykin/autoclaim/internal/constants"
	"github.com/aatumaykin/autoclaim/internal/instance"
	"github.com/aatumaykin/autoclaim/internal/logger"
	"github.com/aatumaykin/autoclaim/internal/version"
)

var (
	configPath    string
	workspacePath string
	debug         bool
	autostartRole bool
)

// rootCmd runs the process in the role given by its flags.
var rootCmd = &cobra.Command{
	Use:   "autoclaim",
	Short: "Unattended WAX reward claiming agent",
	Long: `autoclaim claims recurring on-chain rewards for the accounts configured
in the wallet's autoclaim.json. Without flags it runs in the interactive role
and launches the background agent when needed; with --autostart it is the
agent.`,
	Version:      Version,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: "+constants.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVarP(&workspacePath, "workspace", "w", "", "Path to workspace directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&autostartRole, "autostart", false, "Run as the background agent")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(autostartCmd)
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), constants.MsgConfigLoadError, err)
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprint(cmd.ErrOrStderr(), constants.MsgConfigValidationError)
		for _, e := range errs {
			fmt.Fprintf(cmd.ErrOrStderr(), constants.MsgConfigValidatePrefix, e)
		}
		return errors.New("invalid configuration")
	}

	role := instance.RoleInteractive
	if autostartRole {
		role = instance.RoleAutostart
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()
	logger.SetDefault(log)

	log.Info(version.FormatStartupMessage(),
		logger.Field{Key: "role", Value: role.String()},
		logger.Field{Key: "config", Value: resolvedConfigPath()},
		logger.Field{Key: "workspace", Value: cfg.Workspace.Path})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := app.New(cfg, log, app.WithConfigPath(configPath))
	err = a.Run(ctx, role)

	var held *instance.HeldError
	switch {
	case errors.As(err, &held):
		fmt.Fprintf(cmd.ErrOrStderr(), constants.MsgAlreadyRunning, held.Role, held.PID)
		log.Info("role already held, exiting", logger.Field{Key: "pid", Value: held.PID})
		return nil
	case errors.Is(err, app.ErrDisabled):
		return nil
	case err != nil:
		log.Error("autoclaim stopped", err)
		return err
	}
	return nil
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return constants.DefaultConfigPath
}

// loadConfig loads the configuration and applies command line overrides.
// A missing config file yields the defaults. An .env next to the config
// file is loaded first, so passphrases can stay out of it.
func loadConfig() (*config.Config, error) {
	path := resolvedConfigPath()
	expanded, err := logger.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnvOptional(filepath.Join(filepath.Dir(expanded), ".env")); err != nil {
		return nil, err
	}

	var cfg *config.Config
	if configPath == "" {
		cfg, err = config.LoadOrDefault(expanded)
	} else {
		cfg, err = config.Load(expanded)
	}
	if err != nil {
		return nil, err
	}

	if workspacePath != "" {
		ws, err := logger.ExpandHome(workspacePath)
		if err != nil {
			return nil, err
		}
		derivedLog := cfg.Logging.Output == cfg.DefaultLogPath()
		cfg.Workspace.Path = ws
		if derivedLog {
			cfg.Logging.Output = cfg.DefaultLogPath()
		}
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// cliLogger is used by management commands; it only reports problems.
func cliLogger(cmd *cobra.Command) *logger.Logger {
	level := "warn"
	if debug {
		level = "debug"
	}
	log, err := logger.NewWithWriter(cmd.ErrOrStderr(), level, "line")
	if err != nil {
		return logger.Nop()
	}
	return log
}

// withApp loads the configuration and builds an App for read-mostly
// commands.
func withApp(cmd *cobra.Command) (*config.Config, *app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, app.New(cfg, cliLogger(cmd), app.WithConfigPath(configPath)), nil
}
