// Package cli wires the pipelinectl command-line surface: run a task file
// once, validate task files, serve the HTTP API, and print the version or
// the task JSON Schema. There is no command that lists registered backends.
// It is grounded on
// internal/cli/root.go in the teacher repository this project started
// from, trimmed of its fang/lipgloss terminal styling and its
// godotenv/self-update machinery (this project's supporting infrastructure
// has no release channel to check), keeping the same viper-backed
// config/flag precedence and zerolog setup.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taskflow/pipelinectl/internal/config"
)

var (
	cfgFile  string
	logLevel string
	output   string
	quiet    bool
)

var rootCmd = &cobra.Command{
	Use:     "pipelinectl",
	Short:   "Run and serve task pipelines against pluggable execution backends",
	Version: "dev",
	Long: `pipelinectl executes declarative task pipelines: single backend calls or
DAGs of steps with dependencies, retries, timeouts, and templated inputs.

Use "pipelinectl run" to execute a task file once, or "pipelinectl serve" to
expose the engine over HTTP.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
}

// Execute runs the root command. Called by cmd/pipelinectl/main.go.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.pipelinectl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "", "output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

// loadConfig loads the process config, applying any CLI flag overrides the
// user passed over whatever the config file/environment set.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if output != "" {
		cfg.Output = output
	}
	return cfg, nil
}

func initLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipelinectl: %v\n", err)
		return
	}

	zerolog.SetGlobalLevel(cfg.ZerologLevel())
	if !quiet && cfg.Output != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
