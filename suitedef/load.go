package suitedef

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/launchdarkly/roll-forward-tests/harness"
	"github.com/launchdarkly/roll-forward-tests/process"
)

// Load reads a suite definition from a JSON file.
func Load(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("reading suite file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Suite{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func Parse(data []byte) (Suite, error) {
	var s Suite
	if err := json.Unmarshal(data, &s); err != nil {
		return Suite{}, fmt.Errorf("invalid suite definition: %w", err)
	}
	if len(s.Cases) == 0 {
		return Suite{}, errors.New("suite definition has no cases")
	}
	return s, nil
}

// Defaults are the last fallback for server settings a suite leaves out.
type Defaults struct {
	// BaseDir is what relative server directories are resolved against.
	BaseDir      string
	Port         int
	StartupGrace time.Duration
	HardDeadline time.Duration
}

// TestCases validates the suite and turns it into cases the harness can run.
func (s Suite) TestCases(d Defaults) ([]harness.TestCase, error) {
	var cases []harness.TestCase
	seen := make(map[string]bool)
	var errs []string
	for i, c := range s.Cases {
		label := c.Name
		if label == "" {
			label = fmt.Sprintf("case #%d", i+1)
			errs = append(errs, label+": name is required")
		} else if seen[c.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate case name", label))
		}
		seen[c.Name] = true

		server, err := resolveServer(c.Server, s.Defaults, d)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", label, err))
			continue
		}
		steps, err := buildSteps(c.Steps, server.Port)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", label, err))
			continue
		}
		cases = append(cases, harness.TestCase{Name: c.Name, Tag: c.Tag, Server: server, Steps: steps})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid suite definition:\n  %s", strings.Join(errs, "\n  "))
	}
	return cases, nil
}

func resolveServer(def, suiteDefaults ServerDef, d Defaults) (process.ServerSpec, error) {
	spec := process.ServerSpec{
		Command:      firstNonEmpty(def.Command, suiteDefaults.Command),
		Dir:          firstNonEmpty(def.Dir, suiteDefaults.Dir),
		Port:         def.Port.OrElse(suiteDefaults.Port.OrElse(d.Port)),
		StartupGrace: millis(def.StartupGraceMS, suiteDefaults.StartupGraceMS, d.StartupGrace),
		HardDeadline: millis(def.HardDeadlineMS, suiteDefaults.HardDeadlineMS, d.HardDeadline),
	}
	switch {
	case def.WaitForPort != nil:
		spec.WaitForPort = *def.WaitForPort
	case suiteDefaults.WaitForPort != nil:
		spec.WaitForPort = *suiteDefaults.WaitForPort
	}

	if strings.TrimSpace(spec.Command) == "" {
		return spec, errors.New("server command is required")
	}
	if spec.Port <= 0 || spec.Port > 65535 {
		return spec, fmt.Errorf("server port %d is out of range", spec.Port)
	}
	if spec.HardDeadline < 0 || spec.StartupGrace < 0 {
		return spec, errors.New("durations must not be negative")
	}
	if spec.HardDeadline > 0 && spec.StartupGrace >= spec.HardDeadline {
		return spec, fmt.Errorf("startup grace %s must be shorter than hard deadline %s", spec.StartupGrace, spec.HardDeadline)
	}
	if spec.Dir == "" {
		spec.Dir = d.BaseDir
	} else if !filepath.IsAbs(spec.Dir) && d.BaseDir != "" {
		spec.Dir = filepath.Join(d.BaseDir, spec.Dir)
	}
	return spec, nil
}

// PortPlaceholder is replaced in probe commands with the case's server port.
const PortPlaceholder = "{port}"

func buildSteps(defs []StepDef, port int) ([]harness.Step, error) {
	steps := make([]harness.Step, 0, len(defs))
	for i, def := range defs {
		step, err := buildStep(def, port)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func buildStep(def StepDef, port int) (harness.Step, error) {
	var found []harness.Step
	if def.Probe != nil {
		if strings.TrimSpace(def.Probe.Command) == "" {
			return nil, errors.New("probe command is required")
		}
		command := strings.ReplaceAll(def.Probe.Command, PortPlaceholder, strconv.Itoa(port))
		found = append(found, harness.Probe{Command: command, Assertions: def.Probe.Assertions})
	}
	if def.SendMalformed != nil {
		found = append(found, harness.SendMalformed{})
	}
	if def.HoldIncomplete != nil {
		if def.HoldIncomplete.Count < 1 {
			return nil, errors.New("holdIncomplete count must be at least 1")
		}
		nested, err := buildSteps(def.HoldIncomplete.Steps, port)
		if err != nil {
			return nil, err
		}
		found = append(found, harness.HoldIncomplete{Count: def.HoldIncomplete.Count, Steps: nested})
	}
	if def.PauseMS.IsDefined() {
		if def.PauseMS.IntValue() < 0 {
			return nil, errors.New("pauseMs must not be negative")
		}
		found = append(found, harness.Pause{Duration: time.Duration(def.PauseMS.IntValue()) * time.Millisecond})
	}
	if len(found) != 1 {
		return nil, fmt.Errorf("each step must have exactly one of probe, sendMalformed, holdIncomplete, pauseMs (found %d)", len(found))
	}
	return found[0], nil
}

func millis(value, fallback ldvalue.OptionalInt, last time.Duration) time.Duration {
	if value.IsDefined() {
		return time.Duration(value.IntValue()) * time.Millisecond
	}
	if fallback.IsDefined() {
		return time.Duration(fallback.IntValue()) * time.Millisecond
	}
	return last
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
