package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"vodstitch/internal/ipc"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the workflow of a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if resp.Stopped {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon workflow stopped")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Stop request sent")
				}
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				fmt.Fprintln(stdout, sectionHeader("Daemon", colorize))
				fmt.Fprintln(stdout, statusLine("Workflow running", status.Running, yesNo(status.Running), colorize))
				fmt.Fprintf(stdout, "  PID: %d\n", status.PID)
				fmt.Fprintf(stdout, "  Queue database: %s\n", status.QueueDBPath)
				fmt.Fprintf(stdout, "  Lock file: %s\n", status.LockPath)
				if status.LastError != "" {
					fmt.Fprintf(stdout, "  Last error: %s\n", status.LastError)
				}
				fmt.Fprintln(stdout)

				fmt.Fprintln(stdout, sectionHeader("Stages", colorize))
				for _, health := range status.StageHealth {
					detail := health.Detail
					if detail == "" && health.Ready {
						detail = "ready"
					}
					fmt.Fprintln(stdout, statusLine(health.Name, health.Ready, detail, colorize))
				}
				fmt.Fprintln(stdout)

				fmt.Fprintln(stdout, sectionHeader("Dependencies", colorize))
				for _, dep := range status.Dependencies {
					detail := strings.TrimSpace(dep.Detail)
					if detail == "" {
						if dep.Available {
							detail = fmt.Sprintf("found (%s)", dep.Command)
						} else {
							detail = "not available"
						}
					}
					fmt.Fprintln(stdout, statusLine(dep.Name, dep.Available || dep.Optional, detail, colorize))
				}
				fmt.Fprintln(stdout)

				fmt.Fprintln(stdout, sectionHeader("Queue", colorize))
				rows := buildQueueStatusRows(status.QueueStats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func sectionHeader(title string, colorize bool) string {
	if colorize {
		return text.Bold.Sprint(title)
	}
	return title
}

func statusLine(label string, ok bool, detail string, colorize bool) string {
	marker := "[ok]"
	if !ok {
		marker = "[!!]"
	}
	if colorize {
		if ok {
			marker = text.FgGreen.Sprint(marker)
		} else {
			marker = text.FgRed.Sprint(marker)
		}
	}
	if detail == "" {
		return fmt.Sprintf("  %s %s", marker, label)
	}
	return fmt.Sprintf("  %s %s: %s", marker, label, detail)
}

// buildQueueStatusRows renders non-zero status counts in a stable order.
func buildQueueStatusRows(stats map[string]int) [][]string {
	names := make([]string, 0, len(stats))
	for name, count := range stats {
		if count == 0 {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{statusLabel(name), strconv.Itoa(stats[name])})
	}
	return rows
}

func statusLabel(status string) string {
	switch status {
	case "":
		return "unknown"
	default:
		cleaned := strings.ReplaceAll(status, "_", " ")
		return strings.ToUpper(cleaned[:1]) + cleaned[1:]
	}
}
