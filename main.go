// Package main is the entry point for the ClouSec service: the HTTP API, the
// scheduled sweeps, the event consumers and the one-shot CLI commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "clousec",
	Short:   "ClouSec - cloud security posture monitor",
	Long:    `ClouSec scans AWS resources for misconfigurations, tracks each finding from OPEN to RESOLVED, and re-scans resources as cloud events arrive.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServer(cmd.Context())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(publishEventCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
