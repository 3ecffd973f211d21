package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags
var version = "dev"

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "inbox-orch",
		Short: "Inbox Orchestrator - email delegation manager",
		Long: `Inbox Orchestrator drives an email delegation agent on a remote agent
platform. It scans your inbox for delegation requests, extracts tasks,
notifies the assigned teammates, and tracks every run in a dashboard.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
