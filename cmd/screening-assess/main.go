// Package main implements the screening-assess CLI: run risk assessments from patient files and
// inspect knowledge bases.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cancer-risk-screening/internal/config"
	"github.com/cancer-risk-screening/internal/logging"
)

var (
	// configFile is an explicit configuration file; empty searches the default locations
	configFile string
	// logLevel overrides logging.level when set
	logLevel string
	// knowledgePath overrides knowledge.path when set
	knowledgePath string

	// version information
	version = "dev"

	configManager *config.Manager
	logger        *logrus.Logger
	closeLog      = func() error { return nil }
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "screening-assess",
	Short: "Cancer risk screening assessments",
	Long: `screening-assess scores patient profiles for cancer risk, builds guideline-referenced
screening plans and validates them, printing the audited assessment as JSON.

Configuration is read from screening.yaml (., ./config, /etc/cancer-risk-screening/) and
SCREENING_* environment variables.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file (default: search for screening.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&knowledgePath, "knowledge", "", "knowledge base YAML file (default: embedded)")
}

// setup loads configuration, applies flag overrides and builds the logger
func setup(cmd *cobra.Command, args []string) error {
	m, err := config.NewManager(configFile)
	if err != nil {
		return err
	}

	if logLevel != "" {
		if err := m.Set("logging.level", logLevel); err != nil {
			return err
		}
	}
	if knowledgePath != "" {
		if err := m.Set("knowledge.path", knowledgePath); err != nil {
			return err
		}
	}

	if err := m.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	l, closeFn, err := logging.NewLogger(*m.GetLoggingConfig())
	if err != nil {
		return err
	}

	configManager = m
	logger = l
	closeLog = closeFn

	if used := m.ConfigFileUsed(); used != "" {
		logger.WithField("config_file", used).Debug("Loaded configuration file")
	}
	return nil
}
