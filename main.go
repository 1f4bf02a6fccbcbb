package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alessio/shellescape"
	"github.com/spf13/cobra"

	"github.com/launchdarkly/roll-forward-tests/cases"
	"github.com/launchdarkly/roll-forward-tests/checkout"
	"github.com/launchdarkly/roll-forward-tests/config"
	"github.com/launchdarkly/roll-forward-tests/framework"
	"github.com/launchdarkly/roll-forward-tests/harness"
	"github.com/launchdarkly/roll-forward-tests/logging"
	"github.com/launchdarkly/roll-forward-tests/metrics"
	"github.com/launchdarkly/roll-forward-tests/suitedef"
)

// errCasesFailed makes the process exit with status 1 without printing anything more; the
// results have already been reported.
var errCasesFailed = errors.New("one or more cases failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errCasesFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "roll-forward-tests",
		Short:         "Run a server at successive revisions and probe it with misbehaving clients",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newRunCommand(stdout, stderr), newListCommand(stdout))
	return root
}

func newRunCommand(stdout, stderr io.Writer) *cobra.Command {
	var params commandParams
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the suite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := params.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runSuite(cmd.Context(), cfg, params, stdout, stderr)
		},
	}
	params.bindSuiteFlags(cmd.Flags())
	params.bindRunFlags(cmd.Flags())
	return cmd
}

func newListCommand(stdout io.Writer) *cobra.Command {
	var params commandParams
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the cases in the suite without running them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := params.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			testCases, err := loadCases(cfg)
			if err != nil {
				return err
			}
			printCases(stdout, testCases)
			return nil
		},
	}
	params.bindSuiteFlags(cmd.Flags())
	return cmd
}

func loadCases(cfg *config.Config) ([]harness.TestCase, error) {
	suite := cases.RebuildingHTTP()
	if cfg.Suite != "" {
		loaded, err := suitedef.Load(cfg.Suite)
		if err != nil {
			return nil, err
		}
		suite = loaded
	}
	baseDir, err := workingCopyDir(cfg)
	if err != nil {
		return nil, err
	}
	return suite.TestCases(suitedef.Defaults{
		BaseDir:      baseDir,
		Port:         cfg.Server.Port,
		StartupGrace: cfg.Server.StartupGrace,
		HardDeadline: cfg.Server.HardDeadline,
	})
}

func workingCopyDir(cfg *config.Config) (string, error) {
	if cfg.Repo.Dir == "" {
		return "", nil
	}
	dir, err := filepath.Abs(cfg.Repo.Dir)
	if err != nil {
		return "", fmt.Errorf("resolving working copy directory: %w", err)
	}
	return dir, nil
}

func runSuite(ctx context.Context, cfg *config.Config, params commandParams, stdout, stderr io.Writer) error {
	logger, err := logging.New(stderr, logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Timestamps: true,
	})
	if err != nil {
		return err
	}

	testCases, err := loadCases(cfg)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	rc := harness.NewRunContext(harness.RunOptions{
		Logger:           logger.Named("harness"),
		Host:             cfg.Server.Host,
		Verbose:          cfg.Probe.Verbose,
		StopTimeout:      cfg.Server.StopTimeout,
		OutputLimitBytes: cfg.Probe.OutputLimitBytes,
		OnKill:           recorder.ServerKilled,
		StepObserver:     recorder,
	})

	if cfg.Repo.Dir != "" {
		dir, err := workingCopyDir(cfg)
		if err != nil {
			return err
		}
		git := checkout.NewGit(cfg.Repo.URL, dir, rc.Runner, logger.Named("checkout"))
		git.MainBranch = cfg.Repo.MainBranch
		if cfg.ShouldPrepare() {
			if err := git.Prepare(); err != nil {
				return err
			}
		}
		rc.Checkout = git
	}

	fmt.Fprintln(stdout)
	framework.PrintFilterDescription(stdout, params.filters)
	fmt.Fprintf(stdout, "Running %d case(s)\n", len(testCases))

	console := &ConsoleTestLogger{
		Out:                  stdout,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	results := harness.RunSuite(ctx, rc, testCases, params.filters.AsFilter,
		framework.MultiTestLogger(console, recorder))
	recorder.RunFinished(results)

	fmt.Fprintln(stdout)
	framework.PrintResults(stdout, results)

	if cfg.Metrics.File != "" {
		if err := recorder.WriteFile(cfg.Metrics.File); err != nil {
			logger.Errorf("Could not write metrics file: %s", err)
		} else {
			logger.Infof("Wrote metrics to %s", cfg.Metrics.File)
		}
	}
	if !results.OK() {
		return errCasesFailed
	}
	return nil
}

func printCases(out io.Writer, testCases []harness.TestCase) {
	for _, tc := range testCases {
		fmt.Fprintf(out, "%s\n", tc.Name)
		if tc.Tag != "" {
			fmt.Fprintf(out, "  tag:    %s\n", tc.Tag)
		}
		fmt.Fprintf(out, "  server: %s\n", shellLine(tc.Server.Dir, tc.Server.Command))
		fmt.Fprintf(out, "  port:   %d\n", tc.Server.Port)
		for _, s := range tc.Steps {
			fmt.Fprintf(out, "  - %s\n", s.Describe())
		}
	}
}

// shellLine shows how a server command would be typed by hand, including the directory
// change.
func shellLine(dir, command string) string {
	if dir == "" {
		return command
	}
	return strings.Join([]string{"cd", shellescape.Quote(dir), "&&", command}, " ")
}
