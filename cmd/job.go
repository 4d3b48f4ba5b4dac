package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/eltorchestrator/internal/jobmanager"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store"
)

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Create, inspect, list, and delete job definitions",
	}
	cmd.AddCommand(jobCreateCmd())
	cmd.AddCommand(jobListCmd())
	cmd.AddCommand(jobGetCmd())
	cmd.AddCommand(jobDeleteCmd())
	return cmd
}

// jobFile is the on-disk shape accepted by `job create -f`, mirroring the
// POST /jobs request body in spec.md §6.
type jobFile struct {
	JobName     string     `json:"job_name"`
	Description string     `json:"description"`
	Schedule    string     `json:"schedule"`
	IsActive    bool       `json:"is_active"`
	Tasks       []taskFile `json:"tasks"`
}

type taskFile struct {
	ExtractorConfig json.RawMessage `json:"extractor_config"`
	LoaderConfig    json.RawMessage `json:"loader_config"`
}

func jobCreateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a job from a JSON file",
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(path)
			if err != nil {
				fatalf("reading %s: %s", path, err)
			}

			var jf jobFile
			if err := json.Unmarshal(data, &jf); err != nil {
				fatalf("parsing %s: %s", path, err)
			}

			tasks := make([]store.NewTask, len(jf.Tasks))
			for i, t := range jf.Tasks {
				tasks[i] = store.NewTask{
					TaskOrder:       i,
					ExtractorConfig: t.ExtractorConfig,
					LoaderConfig:    t.LoaderConfig,
				}
			}

			mgr := jobManagerFromConfig()
			job, createdTasks, err := mgr.CreateJob(cmd.Context(), store.NewJob{
				JobName:     jf.JobName,
				Description: jf.Description,
				Schedule:    jf.Schedule,
				IsActive:    jf.IsActive,
				Tasks:       tasks,
			})
			if err != nil {
				fatalf("creating job: %s", err)
			}

			printJSON(map[string]any{"job": job, "tasks": createdTasks})
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "path to job definition JSON")
	cmd.MarkFlagRequired("file")
	return cmd
}

func jobListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all job definitions",
		Run: func(cmd *cobra.Command, args []string) {
			mgr := jobManagerFromConfig()
			jobs, err := mgr.ListJobs(cmd.Context())
			if err != nil {
				fatalf("listing jobs: %s", err)
			}
			printJSON(jobs)
		},
	}
}

func jobGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job_id>",
		Short: "Show one job definition and its tasks",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := uuid.Parse(args[0])
			if err != nil {
				fatalf("invalid job_id: %s", err)
			}
			mgr := jobManagerFromConfig()
			job, tasks, err := mgr.GetJob(cmd.Context(), id)
			if err != nil {
				fatalf("getting job: %s", err)
			}
			printJSON(map[string]any{"job": job, "tasks": tasks})
		},
	}
}

func jobDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job_id>",
		Short: "Delete a job, cascading to its tasks and runs",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := uuid.Parse(args[0])
			if err != nil {
				fatalf("invalid job_id: %s", err)
			}
			mgr := jobManagerFromConfig()
			if err := mgr.DeleteJob(cmd.Context(), id); err != nil {
				fatalf("deleting job: %s", err)
			}
			fmt.Printf("job %s deleted\n", id)
		},
	}
}

// jobManagerFromConfig opens the store named by the loaded config and
// wraps it in a Job Manager. The CLI is short-lived per invocation, so the
// store handle is intentionally never closed here — process exit reclaims
// it, matching the teacher's one-shot command style (e.g. cmd/sessions_cmd.go).
func jobManagerFromConfig() *jobmanager.Manager {
	cfg := loadConfig()
	st, err := openStore(cfg)
	if err != nil {
		fatalf("opening store: %s", err)
	}
	return jobmanager.New(st)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatalf("encoding output: %s", err)
	}
	fmt.Println(string(data))
}
