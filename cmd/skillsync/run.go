package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"skillsync/internal/config"
	"skillsync/internal/invoker"
	"skillsync/internal/remote"
	"skillsync/pkg/cmdutil"
	"skillsync/pkg/fileutil"

	"github.com/spf13/cobra"
)

var (
	runConfigFile string
	runPipeline   string
	runBranch     string
	runRepoDir    string
	runInvocation string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the branch gate once and invoke the load script",
	Long: `Evaluate a pipeline's branch gate against the current branch and, when
it matches, run the load script on every configured target in order.

The branch defaults to whatever git has checked out in the repository
directory. A non-matching branch is a successful no-op. The process
exits with the status of the last target, so build systems can consume
it directly.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runConfigFile, "config", "c", getEnvOrDefault("SKILLSYNC_CONFIG_FILE", ""), "Path to pipelines.yaml configuration file")
	runCmd.Flags().StringVarP(&runPipeline, "pipeline", "P", "", "Pipeline to run (defaults to the only configured pipeline)")
	runCmd.Flags().StringVarP(&runBranch, "branch", "b", getEnvOrDefault("SKILLSYNC_BRANCH", ""), "Branch to evaluate the gate against (defaults to the checked-out branch)")
	runCmd.Flags().StringVar(&runRepoDir, "repo-dir", "", "Git repository to read the current branch from")
	runCmd.Flags().StringVar(&runInvocation, "invocation", "", "Override the pipeline's load command")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	configFile, err := resolveConfigFile(runConfigFile)
	if err != nil {
		return err
	}

	pipelines, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	pipeline, err := selectPipeline(pipelines, runPipeline)
	if err != nil {
		return err
	}

	if runInvocation != "" {
		parts, err := cmdutil.ParseCommandString(runInvocation)
		if err != nil {
			return fmt.Errorf("invalid --invocation: %w", err)
		}
		pipeline.Invocation = parts
	}

	branch := runBranch
	if branch == "" {
		branch, err = cmdutil.CurrentBranch(cmd.Context(), runRepoDir)
		if err != nil {
			return err
		}
	}

	logger.Info("evaluating branch gate",
		"pipeline", pipeline.Name,
		"branch", branch,
		"trigger_branch", pipeline.TriggerBranch,
		"invocation", cmdutil.FormatCommand(pipeline.Invocation))

	executor := remote.NewSSHExecutor(pipeline.ConnectTimeout, pipeline.CommandTimeout)
	inv := invoker.New(pipeline, executor, logger)

	report, err := inv.Run(cmd.Context(), branch)
	if err != nil {
		return err
	}

	printReport(report)

	// The exit status carries the last target's exit code
	if report.ExitCode != 0 {
		os.Exit(report.ExitCode)
	}
	return nil
}

// selectPipeline picks the pipeline to run. With one pipeline configured
// the name can be omitted.
func selectPipeline(pipelines map[string]*config.Pipeline, name string) (*config.Pipeline, error) {
	if name != "" {
		pipeline, ok := pipelines[name]
		if !ok {
			return nil, fmt.Errorf("pipeline '%s' not found in configuration", name)
		}
		return pipeline, nil
	}

	if len(pipelines) == 1 {
		for _, pipeline := range pipelines {
			return pipeline, nil
		}
	}

	names := make([]string, 0, len(pipelines))
	for n := range pipelines {
		names = append(names, n)
	}
	return nil, fmt.Errorf("multiple pipelines configured, use --pipeline to pick one of %v", names)
}

// resolveConfigFile falls back to the default search paths when no config
// flag was given
func resolveConfigFile(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	searchPaths := fileutil.DefaultConfigPaths("pipelines.yaml")
	found := fileutil.SearchPathsOptional(searchPaths)
	if found == "" {
		fmt.Fprintf(os.Stderr, "Error: No configuration file found in default locations:\n")
		for _, path := range searchPaths {
			fmt.Fprintf(os.Stderr, "  - %s\n", path)
		}
		fmt.Fprintf(os.Stderr, "Use --config flag to specify a custom location\n")
		return "", fmt.Errorf("configuration file not found")
	}
	return found, nil
}

func printReport(report *invoker.Report) {
	if report.Skipped {
		fmt.Printf("Branch %q does not match trigger branch, nothing to do\n", report.Branch)
		return
	}

	for _, tr := range report.Targets {
		status := "ok"
		if !tr.OK() {
			status = "failed"
		}
		fmt.Printf("%s  %s (exit %d, %s)\n", status, tr.Target.String(), tr.ExitCode, tr.Duration.Round(time.Millisecond))
	}
}
