package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vodstitch/internal/api"
	"vodstitch/internal/ipc"
	"vodstitch/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the job queue",
	}
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueClearCommand(ctx))
	cmd.AddCommand(newQueueResetCommand(ctx))
	cmd.AddCommand(newQueueRetryCommand(ctx))
	cmd.AddCommand(newQueueHealthCommand(ctx))
	cmd.AddCommand(newQueueCancelCommand(ctx))
	cmd.AddCommand(newQueueRemoveCommand(ctx))
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var (
		statusFilters []string
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilters(statusFilters)
			if err != nil {
				return err
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var summaries []api.JobSummary
				if client != nil {
					resp, listErr := client.JobList(statusFilters)
					if listErr != nil {
						return listErr
					}
					summaries = resp.Jobs
				} else {
					jobs, listErr := store.List(cmd.Context(), statuses...)
					if listErr != nil {
						return listErr
					}
					summaries = api.FromJobs(jobs)
				}

				if asJSON {
					encoder := json.NewEncoder(cmd.OutOrStdout())
					encoder.SetIndent("", "  ")
					return encoder.Encode(api.JobListResponse{Jobs: summaries})
				}

				if len(summaries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(summaries))
				for _, job := range summaries {
					rows = append(rows, []string{
						job.Key,
						job.VodID,
						statusLabel(job.Status),
						job.Stage,
						job.StartedAt,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Job", "VOD", "Status", "Stage", "Started"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "filter by status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the listing as JSON")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var (
		completedOnly bool
		failedOnly    bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if completedOnly && failedOnly {
				return fmt.Errorf("--completed and --failed are mutually exclusive")
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var (
					removed int64
					err     error
					label   string
				)
				switch {
				case completedOnly:
					label = "completed "
					if client != nil {
						var resp *ipc.QueueClearCompletedResponse
						resp, err = client.QueueClearCompleted()
						if err == nil {
							removed = resp.Removed
						}
					} else {
						removed, err = store.ClearCompleted(cmd.Context())
					}
				case failedOnly:
					label = "failed "
					if client != nil {
						var resp *ipc.QueueClearFailedResponse
						resp, err = client.QueueClearFailed()
						if err == nil {
							removed = resp.Removed
						}
					} else {
						removed, err = store.ClearFailed(cmd.Context())
					}
				default:
					if client != nil {
						var resp *ipc.QueueClearResponse
						resp, err = client.QueueClear()
						if err == nil {
							removed = resp.Removed
						}
					} else {
						removed, err = store.Clear(cmd.Context())
					}
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %sitems\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completedOnly, "completed", false, "clear only completed jobs")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "clear only failed jobs")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Roll in-flight jobs back to their previous stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var (
					updated int64
					err     error
				)
				if client != nil {
					var resp *ipc.QueueResetResponse
					resp, err = client.QueueReset()
					if err == nil {
						updated = resp.Updated
					}
				} else {
					updated, err = store.ResetStuckProcessing(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d items\n", updated)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id ...]",
		Short: "Retry failed jobs; without ids every failed job is retried",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var updated int64
				if client != nil {
					resp, retryErr := client.QueueRetry(ids)
					if retryErr != nil {
						return retryErr
					}
					updated = resp.Updated
				} else {
					var retryErr error
					updated, retryErr = store.RetryFailed(cmd.Context(), ids...)
					if retryErr != nil {
						return retryErr
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried %d failed items\n", updated)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var database bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show queue diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				stdout := cmd.OutOrStdout()
				if database {
					var health queue.DatabaseHealth
					if client != nil {
						resp, err := client.DatabaseHealth()
						if err != nil {
							return err
						}
						health = queue.DatabaseHealth{
							DBPath:           resp.DBPath,
							DatabaseExists:   resp.DatabaseExists,
							DatabaseReadable: resp.DatabaseReadable,
							TableExists:      resp.TableExists,
							IntegrityCheck:   resp.IntegrityCheck,
							TotalJobs:        resp.TotalJobs,
							Error:            resp.Error,
						}
					} else {
						var err error
						health, err = store.CheckHealth(cmd.Context())
						if err != nil && health.Error == "" {
							health.Error = err.Error()
						}
					}
					fmt.Fprintf(stdout, "Database:        %s\n", health.DBPath)
					fmt.Fprintf(stdout, "Exists:          %s\n", yesNo(health.DatabaseExists))
					fmt.Fprintf(stdout, "Readable:        %s\n", yesNo(health.DatabaseReadable))
					fmt.Fprintf(stdout, "Table present:   %s\n", yesNo(health.TableExists))
					fmt.Fprintf(stdout, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
					fmt.Fprintf(stdout, "Total jobs:      %d\n", health.TotalJobs)
					if health.Error != "" {
						fmt.Fprintf(stdout, "Error:           %s\n", health.Error)
					}
					return nil
				}

				var summary queue.HealthSummary
				if client != nil {
					resp, err := client.QueueHealth()
					if err != nil {
						return err
					}
					summary = queue.HealthSummary{
						Total:      resp.Total,
						Pending:    resp.Pending,
						Processing: resp.Processing,
						Failed:     resp.Failed,
						Completed:  resp.Completed,
					}
				} else {
					var err error
					summary, err = store.Health(cmd.Context())
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(stdout, "Total:      %d\n", summary.Total)
				fmt.Fprintf(stdout, "Pending:    %d\n", summary.Pending)
				fmt.Fprintf(stdout, "Processing: %d\n", summary.Processing)
				fmt.Fprintf(stdout, "Failed:     %d\n", summary.Failed)
				fmt.Fprintf(stdout, "Completed:  %d\n", summary.Completed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&database, "database", false, "run detailed database diagnostics")
	return cmd
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request cancellation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				if client != nil {
					if _, err := client.JobCancel(key); err != nil {
						return err
					}
				} else {
					job, err := store.GetByKey(cmd.Context(), key)
					if err != nil {
						return err
					}
					if job == nil {
						return fmt.Errorf("job %s not found", key)
					}
					if err := store.RequestCancel(cmd.Context(), job.ID); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancel requested for job %s\n", key)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Delete a job and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				if client != nil {
					if _, err := client.JobRemove(key); err != nil {
						return err
					}
				} else {
					job, err := store.GetByKey(cmd.Context(), key)
					if err != nil {
						return err
					}
					if job == nil {
						return fmt.Errorf("job %s not found", key)
					}
					if _, err := store.Remove(cmd.Context(), job.ID); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", key)
				return nil
			})
		},
	}
}

func parseStatusFilters(filters []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(filters))
	for _, raw := range filters {
		status, ok := queue.ParseStatus(strings.TrimSpace(raw))
		if !ok {
			return nil, fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parseJobIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid job id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
