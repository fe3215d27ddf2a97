/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package main implements the mechanic CLI, an agent that turns a
// change request into a tested pull request.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/mechanic-dev/mechanic/config"
	"github.com/mechanic-dev/mechanic/orchestrator"
)

type flags struct {
	configFile     string
	targetBranch   string
	draft          bool
	skipTests      bool
	maxFixAttempts int
	verbose        bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "mechanic",
		Short:         "An agent that turns change requests into pull requests",
		Long:          "Mechanic clones a repository, plans a change with Claude, applies it, runs the tests, repairs failures, and opens a pull request from a fork.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if f.verbose {
				level = slog.LevelDebug
			}
			log := clog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			cmd.SetContext(clog.WithLogger(cmd.Context(), log))
		},
	}
	root.PersistentFlags().StringVar(&f.configFile, "config", "", "path to a YAML config file overriding the environment")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")

	for _, sub := range []*cobra.Command{
		taskCommand(&f, orchestrator.KindImplement, "implement", "Implement a feature described in natural language"),
		taskCommand(&f, orchestrator.KindFix, "fix", "Fix a bug described in natural language"),
	} {
		sub.Flags().StringVar(&f.targetBranch, "target-branch", "", "base branch for the pull request (default: the repository's default branch)")
		sub.Flags().BoolVar(&f.draft, "draft", false, "open the pull request as a draft")
		sub.Flags().BoolVar(&f.skipTests, "skip-tests", false, "skip the test run and fix loop")
		sub.Flags().IntVar(&f.maxFixAttempts, "max-fix-attempts", 0, "override the configured fix attempt limit")
		root.AddCommand(sub)
	}
	root.AddCommand(statusCommand(&f))
	return root
}

func taskCommand(f *flags, kind orchestrator.Kind, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <repo-url> <description>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o, err := newOrchestrator(ctx, f)
			if err != nil {
				return err
			}
			task, err := o.ProcessRequest(ctx, orchestrator.Request{
				Kind:         kind,
				Repository:   args[0],
				Description:  args[1],
				TargetBranch: f.targetBranch,
				Draft:        f.draft,
				SkipTests:    f.skipTests,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s %s: %s\n", task.ShortID(), task.Status, task.PRURL)
			return nil
		},
	}
}

func statusCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the task ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx, f.configFile)
			if err != nil {
				return err
			}
			store, err := orchestrator.NewStore(cfg.StateFile)
			if err != nil {
				return err
			}
			return orchestrator.RenderStatus(cmd.OutOrStdout(), store.List(), store.Stats())
		},
	}
}

func newOrchestrator(ctx context.Context, f *flags) (*orchestrator.Orchestrator, error) {
	cfg, err := config.Load(ctx, f.configFile)
	if err != nil {
		return nil, err
	}
	if f.maxFixAttempts > 0 {
		cfg.MaxFixAttempts = f.maxFixAttempts
	}
	return orchestrator.New(ctx, cfg)
}
