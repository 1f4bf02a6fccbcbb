// Package cases holds the built-in roll-forward suite for the rebuilding_http book
// repository, whose code is tagged once per chapter.
package cases

import (
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/launchdarkly/roll-forward-tests/assertion"
	"github.com/launchdarkly/roll-forward-tests/suitedef"
)

const (
	RepoURL = "https://github.com/noahgibbs/rebuilding_http.git"

	// Sinatra picks its own port; the other servers listen on the harness's configured
	// port, 4321 by default.
	sinatraPort = 4567
	blueEyesDir = "blue_eyes"
)

func probe(command string, assertions ...assertion.Assertion) suitedef.StepDef {
	return suitedef.StepDef{Probe: &suitedef.ProbeDef{Command: command, Assertions: assertions}}
}

func server(command string) suitedef.ServerDef {
	return suitedef.ServerDef{Command: command}
}

func blueEyes(app string) suitedef.ServerDef {
	return suitedef.ServerDef{
		Command: "ruby -I./lib -rblue_eyes/dsl " + app,
		Dir:     blueEyesDir,
	}
}

// RebuildingHTTP returns the suite. Server directories are relative to the working copy, and
// probes reach the port each case resolves to.
func RebuildingHTTP() suitedef.Suite {
	return suitedef.Suite{
		Name: "rebuilding_http",
		Defaults: suitedef.ServerDef{
			StartupGraceMS: ldvalue.NewOptionalInt(500),
			HardDeadlineMS: ldvalue.NewOptionalInt(5000),
		},
		Cases: []suitedef.CaseDef{
			{
				Name:   "chapter 2 hello world",
				Tag:    "chapter_2",
				Server: server("ruby my_server.rb"),
				Steps: []suitedef.StepDef{
					probe("curl -v http://localhost:{port}", assertion.Contains("Hello World")),
				},
			},
			{
				Name:   "chapter 3 library response",
				Tag:    "chapter_3",
				Server: server("ruby my_server.rb"),
				Steps: []suitedef.StepDef{
					probe("curl -v http://localhost:{port}", assertion.Contains("Hello From a Library, World")),
				},
			},
			{
				Name:   "chapter 4 response object",
				Tag:    "chapter_4",
				Server: server("ruby my_server.rb"),
				Steps: []suitedef.StepDef{
					probe("curl -v http://localhost:{port}",
						assertion.Contains("Hello Response"),
						assertion.Contains("Framework: UltraCool").OnStderr(),
					),
				},
			},
			{
				Name:   "chapter 5 routing",
				Tag:    "chapter_5",
				Server: blueEyes("little_app.rb"),
				Steps: []suitedef.StepDef{
					probe("curl http://localhost:{port}/frank", assertion.Contains("I did it my way...")),
					probe("curl http://localhost:{port}", assertion.Contains("Who are you looking for?")),
				},
			},
			{
				Name:   "chapter 6 forms",
				Tag:    "chapter_6",
				Server: blueEyes("little_form.rb"),
				Steps: []suitedef.StepDef{
					probe("curl http://localhost:{port}/", assertion.Contains("Who are you?")),
					probe("curl -d who=Bobo http://localhost:{port}/",
						assertion.Contains("Hello, Bobo"),
						assertion.Contains("Request headers"),
					),
					probe("curl -d who=one%2bone http://localhost:{port}/", assertion.Contains("Hello, one+one")),
				},
			},
			{
				Name:   "chapter 7 forms",
				Tag:    "chapter_7",
				Server: blueEyes("little_form.rb"),
				Steps: []suitedef.StepDef{
					probe("curl http://localhost:{port}/", assertion.Contains("Who are you?")),
					probe("curl -d who=Bobo http://localhost:{port}/",
						assertion.Contains("Hello, Bobo"),
						assertion.Contains("Request headers"),
					),
				},
			},
			{
				Name: "chapter 8 rack",
				Tag:  "chapter_8",
				Server: suitedef.ServerDef{
					Command: "bundle exec ruby sin_app.rb",
					Port:    ldvalue.NewOptionalInt(sinatraPort),
				},
				Steps: []suitedef.StepDef{
					probe("curl http://localhost:{port}/", assertion.Contains("Here I am!")),
				},
			},
		},
	}
}
