package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vodstitch/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the vodstitch configuration file",
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigValidateCommand())
	cmd.AddCommand(newConfigShowCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		path      string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(path)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				target = defaultPath
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file %s already exists; use --overwrite to replace it", target)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample config to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "destination path (default ~/.config/vodstitch/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing file")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:         "validate",
		Short:       "Parse and validate a configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(stdout, "Config %s is valid\n", resolved)
			} else {
				fmt.Fprintln(stdout, "No config file found; built-in defaults are valid")
			}
			fmt.Fprintf(stdout, "Listen address: %s\n", cfg.ListenAddr())
			fmt.Fprintf(stdout, "Download dir:   %s\n", cfg.DownloadDir)
			fmt.Fprintf(stdout, "Scratch dir:    %s\n", cfg.ScratchDir)
			fmt.Fprintf(stdout, "Log dir:        %s\n", cfg.LogDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "config file to validate (default search order)")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			source := "built-in defaults"
			if exists {
				source = resolved
			}
			fmt.Fprintf(stdout, "Source: %s\n\n", source)

			token := "(not set)"
			if cfg.AdminToken != "" {
				token = "(set)"
			}

			rows := [][]string{
				{"download_dir", cfg.DownloadDir},
				{"scratch_dir", cfg.ScratchDir},
				{"log_dir", cfg.LogDir},
				{"port", fmt.Sprintf("%d", cfg.Port)},
				{"admin_token", token},
				{"twitchdownloader_binary", cfg.TwitchDownloaderBinary},
				{"ffmpeg_binary", cfg.FFmpegBinary},
				{"ffprobe_binary", cfg.FFprobeBinary},
				{"max_backlog", fmt.Sprintf("%d", cfg.MaxBacklog)},
				{"max_retained_jobs", fmt.Sprintf("%d", cfg.MaxRetainedJobs)},
				{"log_line_cap", fmt.Sprintf("%d", cfg.LogLineCap)},
				{"quality_fallbacks", strings.Join(cfg.QualityFallbacks, ", ")},
				{"log_level", cfg.LogLevel},
				{"log_format", cfg.LogFormat},
				{"log_retention_days", fmt.Sprintf("%d", cfg.LogRetentionDays)},
				{"ntfy_topic", cfg.NtfyTopic},
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"Setting", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "config file to show (default search order)")
	return cmd
}
