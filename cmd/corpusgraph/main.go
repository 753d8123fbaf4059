// Package main provides the corpusgraph CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/brannveig/corpusgraph/pkg/engine"
	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/module"
	_ "github.com/brannveig/corpusgraph/pkg/ops"
	"github.com/brannveig/corpusgraph/pkg/scheduler"
	"github.com/brannveig/corpusgraph/pkg/workflow"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "corpusgraph",
		Short: "corpusgraph - a declarative annotation graph conversion engine",
		Long: `corpusgraph runs a TOML workflow document through three phases —
import, graph operations, export — against an in-memory or disk-backed
annotation graph. See the workflow document's [[import]], [[graph_op]],
and [[export]] array-of-tables for the steps a run executes.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("corpusgraph v%s (%s)\n", version, commit)
		},
	})

	runCmd := &cobra.Command{
		Use:   "run <workflow.toml>",
		Short: "Run a workflow document",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	runCmd.Flags().String("footer", "", "path to write the post-run YAML footer (default: <workflow>.footer.yaml)")
	rootCmd.AddCommand(runCmd)

	validateCmd := &cobra.Command{
		Use:   "validate <workflow.toml>",
		Short: "Parse and validate a workflow document without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	rootCmd.AddCommand(validateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg := engine.LoadFromEnv()
	plan, err := workflow.Load(args[0], cfg.ExpandEnv)
	if err != nil {
		return err
	}
	fmt.Printf("ok: %d import(s), %d graph_op(s), %d export(s)\n",
		len(plan.Imports), len(plan.GraphOps), len(plan.Exports))
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg := engine.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	plan, err := workflow.Load(path, cfg.ExpandEnv)
	if err != nil {
		return err
	}

	var g graph.Engine
	if cfg.InMemory {
		g = graph.New()
	} else {
		disk, err := graph.OpenDisk(cfg.GraphDir)
		if err != nil {
			return fmt.Errorf("opening disk graph at %s: %w", cfg.GraphDir, err)
		}
		defer disk.Close()
		g = disk
	}

	log := engine.NewStderrLogger("run")
	sched := scheduler.New(module.Default, log, cfg)

	ctx := context.Background()
	res := sched.Run(ctx, plan, g)

	for _, s := range res.Statuses {
		if s.Document != "" {
			log.Printf("%s: %s", s.Document, s.Message)
		} else {
			log.Printf("%s", s.Message)
		}
	}
	for _, w := range res.Warnings {
		log.Printf("warning: %v", w)
	}

	footerPath, _ := cmd.Flags().GetString("footer")
	if footerPath == "" {
		footerPath = path + ".footer.yaml"
	}
	footer := workflow.Footer{EngineVersion: version, Success: res.Success()}
	for _, e := range res.FatalErrors {
		footer.FatalErrors = append(footer.FatalErrors, e.Error())
	}
	for _, w := range res.Warnings {
		footer.Warnings = append(footer.Warnings, w.Error())
	}
	if err := workflow.WriteFooter(footer, footerPath); err != nil {
		log.Printf("writing footer: %v", err)
	}

	if !res.Success() {
		for _, e := range res.FatalErrors {
			fmt.Fprintln(os.Stderr, e)
		}
		return fmt.Errorf("run %s: failed in phase %s", filepath.Base(path), res.Phase)
	}
	fmt.Printf("done: %s\n", filepath.Base(path))
	return nil
}
