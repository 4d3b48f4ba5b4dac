package cmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger and inspect job runs",
	}
	cmd.AddCommand(runTriggerCmd())
	cmd.AddCommand(runListCmd())
	cmd.AddCommand(runGetCmd())
	return cmd
}

func runTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <job_id>",
		Short: "Manually queue a run for a job (queued, not executed)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := uuid.Parse(args[0])
			if err != nil {
				fatalf("invalid job_id: %s", err)
			}
			mgr := jobManagerFromConfig()
			run, err := mgr.Trigger(cmd.Context(), id)
			if err != nil {
				fatalf("triggering run: %s", err)
			}
			printJSON(run)
		},
	}
}

func runListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all job runs",
		Run: func(cmd *cobra.Command, args []string) {
			mgr := jobManagerFromConfig()
			runs, err := mgr.ListRuns(cmd.Context())
			if err != nil {
				fatalf("listing runs: %s", err)
			}
			printJSON(runs)
		},
	}
}

func runGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <run_id>",
		Short: "Show one job run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := uuid.Parse(args[0])
			if err != nil {
				fatalf("invalid run_id: %s", err)
			}
			mgr := jobManagerFromConfig()
			run, err := mgr.GetRun(cmd.Context(), id)
			if err != nil {
				fatalf("getting run: %s", err)
			}
			printJSON(run)
		},
	}
}
