package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbukum/mediaflow/scheduler"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Run a pipeline to completion",
		Long: `Builds the named pipeline and runs it on the calling process. Interrupting
the command cancels the job. The exit status is non-zero unless the job completed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, _, err := flags.openEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close(context.Background())

			job, runErr := e.Run(ctx, args[0])
			if job.ID == "" {
				return runErr
			}
			if err := printJob(cmd, job, asJSON); err != nil {
				return err
			}
			if job.Status != scheduler.StatusCompleted {
				return fmt.Errorf("job %s ended %s", job.ID, job.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the job as JSON")
	return cmd
}

func printJob(cmd *cobra.Command, job scheduler.Job, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}
	fmt.Fprintf(out, "Job:       %s\n", job.ID)
	fmt.Fprintf(out, "Pipeline:  %s\n", job.Pipeline)
	fmt.Fprintf(out, "Status:    %s\n", job.Status)
	fmt.Fprintf(out, "Elements:  %d\n", job.Elements)
	fmt.Fprintf(out, "Duration:  %s\n", job.Duration())
	if job.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", job.Error)
	}
	return nil
}
