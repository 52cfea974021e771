// Package cmd provides the CLI commands for shape-ingest.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shapestone/shape-ingest/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "shape-ingest",
	Short: "shape-ingest - HTTP/1.1 request ingestion",
	Long: `shape-ingest reads HTTP/1.1 requests off a byte stream, rejects
request-smuggling header combinations and hands complete requests to a
handler in arrival order.

Configuration:
  Config is loaded from shape-ingest.yaml in the current directory.

  Environment variables can override config values with the SHAPE_INGEST_ prefix.
  Example: SHAPE_INGEST_SERVER_ADDR=:9090

Commands:
  serve       Start the echo server
  check       Validate a captured request stream
  inspect     Print the requests in a captured stream
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./shape-ingest.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
