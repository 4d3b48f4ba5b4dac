// Package cmd implements the orchestrator's CLI, one file per command
// group, grounded on the teacher's cmd/*.go layout (cron_cmd.go,
// config_cmd.go, etc., each a *cobra.Command factory wired from a root
// command here rather than the teacher's missing root.go).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

// Execute runs the orchestrator CLI, returning the process exit code.
func Execute() int {
	root := rootCmd()
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eltorchestrator",
		Short: "ELT job orchestrator: schedule, run, and retry extract-load jobs",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to config file")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(jobCmd())
	cmd.AddCommand(runCmd())
	return cmd
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
