// Command mt2n builds a property graph from triple files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OFFIS-RIT/mt2n/internal/util"
	"github.com/OFFIS-RIT/mt2n/pkg/logger"
	"github.com/OFFIS-RIT/mt2n/pkg/logger/console"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		debug     bool
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "mt2n",
		Short: "Build a property graph from triple files",
		Long: `mt2n reads line oriented triple files, merges entities that share an
identifier property and writes the resulting graph as JSON, Gephi CSV,
type mapping tables, a text summary or into Postgres.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.LoadEnv()
			if !cmd.Flags().Changed("debug") {
				debug = util.GetEnvBool("DEBUG", debug)
			}
			if logFormat == "" {
				logFormat = util.GetEnv("LOG_FORMAT")
			}
			logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
				Debug:  debug,
				Format: logFormat,
			}))
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text, json, logfmt)")

	cmd.AddCommand(ingestCmd(), mergeCmd())
	return cmd
}
