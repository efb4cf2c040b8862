package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vodstitch/internal/api"
	"vodstitch/internal/ipc"
	"vodstitch/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		quality         string
		threads         int
		bandwidth       int
		beginning       string
		ending          string
		noChat          bool
		chatWidth       int
		fontSize        int
		framerate       int
		updateRate      float64
		backgroundColor string
		outline         bool
	)

	cmd := &cobra.Command{
		Use:   "add <vod-id>",
		Short: "Queue a VOD for download and chat rendering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.CreateJobRequest{
				VodID:           args[0],
				Quality:         quality,
				Beginning:       beginning,
				Ending:          ending,
				BackgroundColor: backgroundColor,
			}
			flags := cmd.Flags()
			if flags.Changed("threads") {
				req.Threads = api.FlexNumber(strconv.Itoa(threads))
			}
			if flags.Changed("bandwidth") {
				req.Bandwidth = api.FlexNumber(strconv.Itoa(bandwidth))
			}
			if flags.Changed("no-chat") {
				req.IncludeChat = api.FlexBoolOf(!noChat)
			}
			if flags.Changed("chat-width") {
				req.ChatWidth = api.FlexNumber(strconv.Itoa(chatWidth))
			}
			if flags.Changed("font-size") {
				req.FontSize = api.FlexNumber(strconv.Itoa(fontSize))
			}
			if flags.Changed("framerate") {
				req.Framerate = api.FlexNumber(strconv.Itoa(framerate))
			}
			if flags.Changed("update-rate") {
				req.UpdateRate = api.FlexNumber(strconv.FormatFloat(updateRate, 'f', -1, 64))
			}
			if flags.Changed("outline") {
				req.Outline = api.FlexBoolOf(outline)
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				if client != nil {
					resp, err := client.JobAdd(req)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Queued VOD %s as job %s\n", resp.Job.VodID, resp.Job.Key)
					return nil
				}

				vodID, params, err := req.Validate()
				if err != nil {
					return err
				}
				job, err := store.Enqueue(cmd.Context(), vodID, params)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued VOD %s as job %s\n", job.VodID, job.Key)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&quality, "quality", "", "download quality (default 1080p60)")
	flags.IntVar(&threads, "threads", 0, "download threads (1-4)")
	flags.IntVar(&bandwidth, "bandwidth", 0, "bandwidth cap in KiB/s (64-20000)")
	flags.StringVar(&beginning, "beginning", "", "crop start as HH:MM:SS")
	flags.StringVar(&ending, "ending", "", "crop end as HH:MM:SS")
	flags.BoolVar(&noChat, "no-chat", false, "skip chat download and rendering")
	flags.IntVar(&chatWidth, "chat-width", 0, "rendered chat width in pixels (250-900)")
	flags.IntVar(&fontSize, "font-size", 0, "chat font size (10-52)")
	flags.IntVar(&framerate, "framerate", 0, "chat render framerate (10-60)")
	flags.Float64Var(&updateRate, "update-rate", 0, "chat update interval in seconds (0-2.0)")
	flags.StringVar(&backgroundColor, "background-color", "", "chat background color, #RRGGBB or #RRGGBBAA")
	flags.BoolVar(&outline, "outline", false, "draw text outline in the chat render")
	return cmd
}
