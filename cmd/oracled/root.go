// Package main wires the four process roles spec §2 describes (serve,
// proxy, scheduler, keygen) behind one Cobra CLI so the aggregation
// engine, signer, and keystore are each constructed exactly once and
// threaded down into whichever subcommand runs, rather than reached for
// as package-level globals. Grounded on
// _examples/fox-one-compound/cmd/root.go's persistent-flags-plus-
// OnInitialize shape.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/myceliasignal/slo/internal/config"
	"github.com/myceliasignal/slo/internal/logging"
)

var (
	cfgFile   string
	envFile   string
	debugMode bool

	cfg *config.Config
	log logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "oracled",
	Short: "payment-gated price oracle",
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.json", "path to the JSON config document")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to an optional .env overlay")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug-level logging")
}

// Execute runs the root command. Called once from main.
func Execute(version string) {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	loaded, err := config.Load(cfgFile, envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "oracled: load config:", err)
		os.Exit(1)
	}
	cfg = loaded
}

func initLogging() {
	level := cfg.LogLevel
	if debugMode {
		level = "debug"
	}
	log = logging.NewZapLogger(level)
}
