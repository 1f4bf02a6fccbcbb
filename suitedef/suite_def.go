// Package suitedef is the JSON format for describing a roll-forward suite: which revisions
// to check out, how to start the server at each one, and what to send it.
package suitedef

import (
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/launchdarkly/roll-forward-tests/assertion"
)

type Suite struct {
	Name     string    `json:"name,omitempty"`
	Defaults ServerDef `json:"defaults,omitempty"`
	Cases    []CaseDef `json:"cases"`
}

type CaseDef struct {
	Name   string    `json:"name"`
	Tag    string    `json:"tag,omitempty"`
	Server ServerDef `json:"server"`
	Steps  []StepDef `json:"steps"`
}

// ServerDef describes how to start a server. Unset fields fall back to the suite's
// defaults and then to the harness configuration.
type ServerDef struct {
	Command        string              `json:"command,omitempty"`
	Dir            string              `json:"dir,omitempty"`
	Port           ldvalue.OptionalInt `json:"port,omitempty"`
	StartupGraceMS ldvalue.OptionalInt `json:"startupGraceMs,omitempty"`
	HardDeadlineMS ldvalue.OptionalInt `json:"hardDeadlineMs,omitempty"`
	WaitForPort    *bool               `json:"waitForPort,omitempty"`
}

// StepDef holds exactly one kind of step.
type StepDef struct {
	Probe          *ProbeDef           `json:"probe,omitempty"`
	SendMalformed  *SendMalformedDef   `json:"sendMalformed,omitempty"`
	HoldIncomplete *HoldIncompleteDef  `json:"holdIncomplete,omitempty"`
	PauseMS        ldvalue.OptionalInt `json:"pauseMs,omitempty"`
}

// ProbeDef is a client command and the checks on its output. Every "{port}" in Command is
// replaced with the port the case's server was resolved to.
type ProbeDef struct {
	Command    string                `json:"command"`
	Assertions []assertion.Assertion `json:"assertions,omitempty"`
}

type SendMalformedDef struct{}

type HoldIncompleteDef struct {
	Count int       `json:"count"`
	Steps []StepDef `json:"steps"`
}
