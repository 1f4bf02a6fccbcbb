package main

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/launchdarkly/roll-forward-tests/config"
	"github.com/launchdarkly/roll-forward-tests/framework"
)

type commandParams struct {
	configFile   string
	suiteFile    string
	repoURL      string
	repoDir      string
	noCheckout   bool
	noPrepare    bool
	host         string
	port         int
	startupGrace time.Duration
	hardDeadline time.Duration
	stopTimeout  time.Duration
	filters      framework.RegexFilters
	debug        bool
	debugAll     bool
	verbose      bool
	logLevel     string
	logFormat    string
	metricsFile  string
}

// bindSuiteFlags adds the flags that decide which cases exist. They are shared by the run
// and list commands.
func (c *commandParams) bindSuiteFlags(fs *pflag.FlagSet) {
	d := config.Defaults()
	fs.StringVar(&c.configFile, "config", "", "YAML configuration file")
	fs.StringVar(&c.suiteFile, "suite", "", "JSON suite definition (default: built-in rebuilding_http suite)")
	fs.StringVar(&c.repoDir, "repo-dir", d.Repo.Dir, "working copy of the server under test")
	fs.IntVar(&c.port, "port", d.Server.Port, "default port the server listens on; probe commands reach it through {port}")
	fs.DurationVar(&c.startupGrace, "startup-grace", d.Server.StartupGrace, "default time to wait after starting a server")
	fs.DurationVar(&c.hardDeadline, "hard-deadline", d.Server.HardDeadline, "default maximum lifetime of a server")
}

func (c *commandParams) bindRunFlags(fs *pflag.FlagSet) {
	d := config.Defaults()
	fs.StringVar(&c.repoURL, "repo-url", d.Repo.URL, "repository to clone when the working copy is missing")
	fs.BoolVar(&c.noCheckout, "no-checkout", false, "run against the working copy as it is, ignoring case tags")
	fs.BoolVar(&c.noPrepare, "no-prepare", false, "do not clone or update the working copy before the run")
	fs.StringVar(&c.host, "host", d.Server.Host, "host the servers listen on")
	fs.DurationVar(&c.stopTimeout, "stop-timeout", d.Server.StopTimeout, "how long to wait for a killed server to be reaped")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select cases to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select cases not to run")
	fs.BoolVar(&c.debug, "debug", false, "show debug output for failed cases")
	fs.BoolVar(&c.debugAll, "debug-all", false, "show debug output for all cases")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "log probe output even when the probe succeeds")
	fs.StringVar(&c.logLevel, "log-level", d.Logging.Level, "log level (debug, info, warn, error)")
	fs.StringVar(&c.logFormat, "log-format", d.Logging.Format, "log format (text, json, logfmt)")
	fs.StringVar(&c.metricsFile, "metrics-file", "", "write Prometheus metrics to this file at the end of the run")
}

// loadConfig reads the configuration file, if any, and overlays every flag the user set
// explicitly.
func (c *commandParams) loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	cfg := config.Defaults()
	if c.configFile != "" {
		loaded, err := config.Load(c.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := func(name string, apply func()) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
	set("suite", func() { cfg.Suite = c.suiteFile })
	set("repo-url", func() { cfg.Repo.URL = c.repoURL })
	set("repo-dir", func() { cfg.Repo.Dir = c.repoDir })
	set("no-checkout", func() {
		if c.noCheckout {
			cfg.Repo.Dir = ""
		}
	})
	set("no-prepare", func() {
		prepare := !c.noPrepare
		cfg.Repo.Prepare = &prepare
	})
	set("host", func() { cfg.Server.Host = c.host })
	set("port", func() { cfg.Server.Port = c.port })
	set("startup-grace", func() { cfg.Server.StartupGrace = c.startupGrace })
	set("hard-deadline", func() { cfg.Server.HardDeadline = c.hardDeadline })
	set("stop-timeout", func() { cfg.Server.StopTimeout = c.stopTimeout })
	set("verbose", func() { cfg.Probe.Verbose = c.verbose })
	set("log-level", func() { cfg.Logging.Level = c.logLevel })
	set("log-format", func() { cfg.Logging.Format = c.logFormat })
	set("metrics-file", func() { cfg.Metrics.File = c.metricsFile })

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
