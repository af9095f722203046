package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	fsh "github.com/gofhir/fsh"
	"github.com/gofhir/fsh/pkg/config"
	"github.com/gofhir/fsh/pkg/logger"
)

// errFailed signals that the import reported diagnostics severe enough to
// fail the run. They have already been printed.
var errFailed = errors.New("import failed")

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "fshc",
	Short: "Import FHIR Shorthand definitions",
	Long: `fshc reads FHIR Shorthand (FSH) files, resolves aliases, expands
RuleSet inserts and reports every diagnostic found along the way.

Settings come from fsh-config.yaml (or --config) and FSHC_* environment
variables; flags override both.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       fsh.Version,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger.SetDefault(logger.NewConsole(os.Stderr, cfg.Level()))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (default ./"+config.FileName+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error or none")

	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		if _, err := logger.ParseLevel(logLevel); err != nil {
			return nil, err
		}
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
