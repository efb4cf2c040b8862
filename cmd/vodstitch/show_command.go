package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vodstitch/internal/api"
	"vodstitch/internal/ipc"
	"vodstitch/internal/queue"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var showLog bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show details for a queued job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var detail api.JobDetail
				if client != nil {
					resp, err := client.JobDescribe(key)
					if err != nil {
						return err
					}
					detail = api.JobDetail{Job: resp.Job, Log: resp.Log}
				} else {
					job, err := store.GetByKey(cmd.Context(), key)
					if err != nil {
						return err
					}
					if job == nil {
						return fmt.Errorf("job %s not found", key)
					}
					detail = api.FromJobDetail(job)
				}

				printJobDetail(cmd, detail, showLog)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showLog, "log", false, "include the captured tool log")
	return cmd
}

func printJobDetail(cmd *cobra.Command, detail api.JobDetail, showLog bool) {
	stdout := cmd.OutOrStdout()

	fmt.Fprintf(stdout, "Job:      %s\n", detail.Key)
	fmt.Fprintf(stdout, "VOD:      %s\n", detail.VodID)
	if detail.Title != "" {
		fmt.Fprintf(stdout, "Title:    %s\n", detail.Title)
	}
	fmt.Fprintf(stdout, "Status:   %s\n", statusLabel(detail.Status))
	if detail.Progress.Stage != "" {
		fmt.Fprintf(stdout, "Stage:    %s (%.0f%%)\n", detail.Progress.Stage, detail.Progress.Percent)
	}
	if detail.Progress.Message != "" {
		fmt.Fprintf(stdout, "Message:  %s\n", detail.Progress.Message)
	}
	if detail.ErrorMessage != "" {
		fmt.Fprintf(stdout, "Error:    %s\n", detail.ErrorMessage)
	}
	if detail.Hint != "" {
		fmt.Fprintf(stdout, "Hint:     %s\n", detail.Hint)
	}
	if detail.FinalFile != "" {
		fmt.Fprintf(stdout, "Output:   %s\n", detail.FinalFile)
	}
	if detail.CancelRequested {
		fmt.Fprintln(stdout, "Cancel requested")
	}
	if detail.CreatedAt != "" {
		fmt.Fprintf(stdout, "Created:  %s\n", detail.CreatedAt)
	}
	if detail.StartedAt != "" {
		fmt.Fprintf(stdout, "Started:  %s\n", detail.StartedAt)
	}
	if detail.FinishedAt != "" {
		fmt.Fprintf(stdout, "Finished: %s\n", detail.FinishedAt)
	}

	if !showLog {
		return
	}
	log := strings.TrimSpace(detail.Log)
	if log == "" {
		fmt.Fprintln(stdout, "\nNo log captured yet")
		return
	}
	fmt.Fprintf(stdout, "\nLog:\n%s\n", log)
}
