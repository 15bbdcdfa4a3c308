package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/skypro1111/laugh-coach/internal/config"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "laugh-coach"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "coach",
	Short: "Automated comedy coach",
	Long: `Laugh Coach critiques jokes and recorded sets.

A joke submitted as text is sent to a language model for a critique of its
humor, structure and clarity. A recording (.wav or .mp3, local or s3://) is
transcribed and critiqued, and its delivery is measured locally: duration,
speaking rate, pauses and loudness, with tips when a measure is out of band.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cmd.Flags().Changed("config") {
			cfg, err = config.Load(configPath)
		} else {
			cfg, err = config.LoadOrDefault(configPath)
		}
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
			if err := cfg.Logging.Validate(); err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
		}

		logger = initLogger(cfg.Logging)
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(jokeCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(versionCmd)
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
