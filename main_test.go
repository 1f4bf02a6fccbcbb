package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/launchdarkly/roll-forward-tests/framework"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func parseParams(t *testing.T, args ...string) (*commandParams, *pflag.FlagSet) {
	var params commandParams
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	params.bindSuiteFlags(fs)
	params.bindRunFlags(fs)
	require.NoError(t, fs.Parse(args))
	return &params, fs
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n  hard_deadline: 9s\nlogging:\n  level: warn\n"), 0o600))

	params, fs := parseParams(t, "--config", path, "--port", "4567", "--no-prepare", "-v")
	cfg, err := params.loadConfig(fs)
	require.NoError(t, err)

	assert.Equal(t, 4567, cfg.Server.Port)
	assert.Equal(t, 9*time.Second, cfg.Server.HardDeadline)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Probe.Verbose)
	assert.False(t, cfg.ShouldPrepare())
}

func TestUnsetFlagsDoNotOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repo:\n  dir: /srv/checkout\nserver:\n  host: 127.0.0.1\n"), 0o600))

	params, fs := parseParams(t, "--config", path)
	cfg, err := params.loadConfig(fs)
	require.NoError(t, err)
	assert.Equal(t, "/srv/checkout", cfg.Repo.Dir)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestNoCheckoutClearsWorkingCopy(t *testing.T) {
	params, fs := parseParams(t, "--repo-dir", "/srv/checkout", "--no-checkout")
	cfg, err := params.loadConfig(fs)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Repo.Dir)
}

func TestInvalidFlagValuesAreRejected(t *testing.T) {
	params, fs := parseParams(t, "--startup-grace", "10s")
	_, err := params.loadConfig(fs)
	assert.Error(t, err)
}

func TestListShowsBuiltInSuite(t *testing.T) {
	var stdout, stderr bytes.Buffer
	root := newRootCommand(&stdout, &stderr)
	root.SetArgs([]string{"list", "--repo-dir", "/work/rhttp repo"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	out := stdout.String()
	assert.Contains(t, out, "chapter 2 hello world\n  tag:    chapter_2\n")
	assert.Contains(t, out, "server: cd '/work/rhttp repo' && ruby my_server.rb")
	assert.Contains(t, out, "server: cd '/work/rhttp repo/blue_eyes' && ruby -I./lib -rblue_eyes/dsl little_app.rb")
	assert.Contains(t, out, "port:   4567")
	assert.Contains(t, out, "  - probe: curl http://localhost:4321/frank")
}

func TestListUsesPortFlagInBuiltInProbes(t *testing.T) {
	var stdout, stderr bytes.Buffer
	root := newRootCommand(&stdout, &stderr)
	root.SetArgs([]string{"list", "--repo-dir", "/work/rhttp", "--port", "5000"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	out := stdout.String()
	assert.Contains(t, out, "  - probe: curl http://localhost:5000/frank")
	assert.Contains(t, out, "  - probe: curl http://localhost:4567/")
	assert.NotContains(t, out, "4321")
}

func TestRunReportsResultsAndWritesMetrics(t *testing.T) {
	dir := t.TempDir()
	suitePath := filepath.Join(dir, "suite.json")
	metricsPath := filepath.Join(dir, "rft.prom")
	require.NoError(t, os.WriteFile(suitePath, []byte(`{
		"defaults": {"command": "sleep 10", "startupGraceMs": 100, "hardDeadlineMs": 5000},
		"cases": [
			{"name": "passing", "steps": [
				{"probe": {"command": "echo Hello World", "assertions": [{"predicate": "contains", "needle": "Hello World"}]}}
			]},
			{"name": "failing", "steps": [
				{"probe": {"command": "echo Goodbye", "assertions": [{"predicate": "contains", "needle": "Hello World"}]}}
			]},
			{"name": "filtered", "steps": []}
		]
	}`), 0o600))

	var stdout, stderr bytes.Buffer
	root := newRootCommand(&stdout, &stderr)
	root.SetArgs([]string{"run", "--no-checkout", "--suite", suitePath, "--skip", "^filtered$",
		"--metrics-file", metricsPath, "--debug"})
	err := root.ExecuteContext(context.Background())
	assert.True(t, errors.Is(err, errCasesFailed), "unexpected error: %v", err)

	out := stdout.String()
	assert.Contains(t, out, "[passing]\n  PASSED\n")
	assert.Contains(t, out, "FAILED: failing")
	assert.Contains(t, out, "SKIPPED: filtered")
	assert.Contains(t, out, "1 of 2 case(s) failed (1 skipped)")
	assert.Contains(t, out, "DEBUG")

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `rft_cases_total{outcome="failed"} 1`)
	assert.Contains(t, string(data), `rft_cases_total{outcome="passed"} 1`)
	assert.Contains(t, string(data), `rft_server_kills_total{reason="stop"} 2`)
	assert.Contains(t, string(data), `rft_case_failures_total{kind="assertion"} 1`)
}

func TestConsoleTestLogger(t *testing.T) {
	var out bytes.Buffer
	logger := &ConsoleTestLogger{Out: &out, DebugOutputOnFailure: true}
	id := framework.CaseID{Path: []string{"chapter 2"}}

	var debug framework.CapturingLogger
	debug.Printf("Started server")

	logger.TestStarted(id)
	logger.TestError(id, errors.New("assertion failed\nstdout was:\nGoodbye"))
	logger.TestFinished(id, true, debug.Output())
	logger.TestSkipped(id, "excluded by filter parameters")

	text := out.String()
	assert.Contains(t, text, "[chapter 2]\n")
	assert.Contains(t, text, "  assertion failed\n  stdout was:\n  Goodbye\n")
	assert.Contains(t, text, "  FAILED: chapter 2\n")
	assert.Contains(t, text, "    DEBUG [")
	assert.Contains(t, text, "] Started server\n")
	assert.Contains(t, text, "  SKIPPED: chapter 2 (excluded by filter parameters)\n")
}
