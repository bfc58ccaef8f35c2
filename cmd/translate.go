/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valpere/linetran/internal/config"
	"github.com/valpere/linetran/internal/runner"
	"github.com/valpere/linetran/internal/translator"
)

var (
	inputFiles  []string
	outputFiles []string
	outputDir   string
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate plain-text documents batch by batch",
	Long: `Translate one or more plain-text documents through a batch LLM service.

Each document is cut into batches of non-blank lines. Every batch is sent with
the context summaries of all batches translated before it, including those of
earlier documents in the same run, so list input files in reading order.

A batch whose response is cut off by the token limit is split in half and the
batch size of the rest of the run shrinks with it. A refused batch is split
once and the batch size is restored afterwards.

Available services:
  - anthropic   Anthropic Message Batches API (default)
  - openrouter  OpenRouter chat completions, one request per batch

Examples:
  linetran translate -i ch01.txt -i ch02.txt --output-dir ./out
  linetran translate -i novel.txt -o novel.ko.txt -s ja -t ko --think-budget 8000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		mode, err := cfg.OutputMode()
		if err != nil {
			return err
		}
		source, target, err := cfg.Languages()
		if err != nil {
			return err
		}

		jobs, err := buildJobs(inputFiles, outputFiles, outputDir)
		if err != nil {
			return err
		}
		svc, err := buildService(cfg)
		if err != nil {
			return err
		}
		archive, err := translator.NewArchive(cfg.TempDir)
		if err != nil {
			return err
		}
		if archive != nil {
			slog.Info("archiving raw batch results", slog.String("dir", archive.Dir()))
		}

		opts := []runner.Option{
			runner.WithWaiterConfig(translator.WaiterConfig{
				Interval: cfg.PollInterval,
				Deadline: cfg.PollDeadline,
				Archive:  archive,
			}),
		}
		if cfg.DB != "" {
			db, err := openStore(cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close()
			opts = append(opts, runner.WithStore(db))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r, err := runner.New(ctx, svc, runner.Settings{
			Model:            cfg.Model,
			Mode:             mode,
			SystemPromptPath: cfg.SystemPrompt,
			Source:           source,
			Target:           target,
			BatchSize:        cfg.BatchSize,
			ThinkBudget:      cfg.ThinkBudget,
			MaxTokens:        cfg.MaxTokens,
			Temperature:      cfg.Temperature,
			NoCache:          cfg.NoCache,
		}, opts...)
		if err != nil {
			return err
		}

		slog.Info("starting run",
			slog.String("service", svc.Name()),
			slog.String("model", cfg.Model),
			slog.Int("documents", len(jobs)),
			slog.Int("batch_size", cfg.BatchSize))

		report, err := r.Run(ctx, jobs)
		if report != nil {
			for _, d := range report.Documents {
				note := ""
				if d.Cached {
					note = " (from cache)"
				}
				fmt.Printf("Translated %s -> %s: %d lines in %d batches%s\n", d.Input, d.Output, d.Lines, d.Batches, note)
			}
		}
		if err != nil {
			return fmt.Errorf("translation failed: %w", err)
		}
		fmt.Printf("Run %s completed, final batch size %d\n", report.RunID, report.FinalBatchSize)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)

	f := translateCmd.Flags()
	f.StringSliceVarP(&inputFiles, "input", "i", nil, "Input files in reading order (required)")
	f.StringSliceVarP(&outputFiles, "output", "o", nil, "Output files, one per input (default: --output-dir/<input name>)")
	f.StringVar(&outputDir, "output-dir", "./results", "Directory for outputs when --output is not given")

	f.String("service", config.ServiceAnthropic, "Batch service: anthropic or openrouter")
	f.String("api-key", "", "API key (default from ANTHROPIC_API_KEY or OPENROUTER_API_KEY)")
	f.String("base-url", "", "Override the service base URL")
	f.String("model", "claude-sonnet-4-5-20250929", "Model name")
	f.IntP("batch-size", "b", 100, "Initial number of lines per batch")
	f.Int("think-budget", 0, "Extended thinking token budget (0 disables, otherwise at least 1024)")
	f.String("mode", "structured", "Response encoding: structured or delimited")
	f.String("system-prompt", "", "Path to a system prompt file replacing the built-in one")
	f.StringP("source", "s", "ja", "Source language code")
	f.StringP("target", "t", "ko", "Target language code")
	f.String("temp-dir", "", "Directory to archive raw batch results in")
	f.Duration("poll-interval", translator.DefaultPollInterval, "Interval between batch status checks")
	f.Duration("poll-deadline", 0, "Give up on a batch after this long (0 waits forever)")
	f.Int("max-tokens", 64000, "Maximum tokens per response")
	f.Float64("temperature", 1.0, "Sampling temperature")
	f.Bool("no-cache", false, "Translate documents again even if an earlier run completed them")

	for key, flag := range map[string]string{
		"service":       "service",
		"api_key":       "api-key",
		"base_url":      "base-url",
		"model":         "model",
		"batch_size":    "batch-size",
		"think_budget":  "think-budget",
		"mode":          "mode",
		"system_prompt": "system-prompt",
		"source_lang":   "source",
		"target_lang":   "target",
		"temp_dir":      "temp-dir",
		"poll_interval": "poll-interval",
		"poll_deadline": "poll-deadline",
		"max_tokens":    "max-tokens",
		"temperature":   "temperature",
		"no_cache":      "no-cache",
	} {
		v.BindPFlag(key, f.Lookup(flag))
	}

	translateCmd.MarkFlagRequired("input")
}
