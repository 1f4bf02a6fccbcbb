package checkout

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/launchdarkly/roll-forward-tests/framework"
	"github.com/launchdarkly/roll-forward-tests/probe"
)

const (
	DefaultMainBranch = "main"
	DefaultTimeout    = 2 * time.Minute
)

type commandRunner interface {
	RunIn(ctx context.Context, dir, command string) (probe.Result, error)
}

// Git is a Controller backed by a git working copy in a fixed directory. Commands go
// through the probe runner so a failure carries git's own stderr.
type Git struct {
	RepoURL    string
	Dir        string
	MainBranch string
	Timeout    time.Duration

	runner commandRunner
	logger framework.Logger
}

func NewGit(repoURL, dir string, runner *probe.Runner, logger framework.Logger) *Git {
	return newGitWithRunner(repoURL, dir, runner, logger)
}

func newGitWithRunner(repoURL, dir string, runner commandRunner, logger framework.Logger) *Git {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Git{
		RepoURL:    repoURL,
		Dir:        dir,
		MainBranch: DefaultMainBranch,
		Timeout:    DefaultTimeout,
		runner:     runner,
		logger:     logger,
	}
}

// Prepare makes sure the working copy exists and is up to date: it clones RepoURL into Dir
// if Dir is not a git working copy yet, and otherwise fetches, checks out the main branch
// and pulls.
func (g *Git) Prepare() error {
	ctx, cancel := g.context()
	defer cancel()

	if _, err := os.Stat(filepath.Join(g.Dir, ".git")); err == nil {
		g.logger.Printf("Updating working copy in %s", g.Dir)
		for _, args := range [][]string{
			{"fetch"},
			{"checkout", g.mainBranch()},
			{"pull"},
		} {
			if err := g.git(ctx, g.Dir, args...); err != nil {
				return &Error{Op: "git " + args[0], Dir: g.Dir, Err: err}
			}
		}
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return &Error{Op: "stat", Dir: g.Dir, Err: err}
	}

	if g.RepoURL == "" {
		return &Error{Op: "git clone", Dir: g.Dir, Err: errors.New("working copy is missing and no repository URL is configured")}
	}
	parent := filepath.Dir(g.Dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return &Error{Op: "git clone", Dir: g.Dir, Err: err}
	}
	g.logger.Printf("Cloning %s into %s", g.RepoURL, g.Dir)
	if err := g.git(ctx, parent, "clone", g.RepoURL, filepath.Base(g.Dir)); err != nil {
		return &Error{Op: "git clone", Dir: g.Dir, Err: err}
	}
	return nil
}

// Checkout runs "git checkout <tag>" in the working copy.
func (g *Git) Checkout(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return &Error{Op: "git checkout", Tag: tag, Dir: g.Dir, Err: errors.New("tag is empty")}
	}
	ctx, cancel := g.context()
	defer cancel()

	if err := g.git(ctx, g.Dir, "checkout", tag); err != nil {
		return &Error{Op: "git checkout", Tag: tag, Dir: g.Dir, Err: err}
	}
	g.logger.Printf("Checked out %s in %s", tag, g.Dir)
	return nil
}

func (g *Git) git(ctx context.Context, dir string, args ...string) error {
	_, err := g.runner.RunIn(ctx, dir, probe.Command("git", args...))
	return err
}

func (g *Git) mainBranch() string {
	if g.MainBranch == "" {
		return DefaultMainBranch
	}
	return g.MainBranch
}

func (g *Git) context() (context.Context, context.CancelFunc) {
	if g.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), g.Timeout)
}
