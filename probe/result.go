package probe

import "time"

// Result is the captured outcome of one probe command. It is never modified after Run
// returns it.
type Result struct {
	Command  string
	Dir      string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration

	// Truncated is true if either stream exceeded the capture limit.
	Truncated bool
}

func (r Result) StdoutString() string {
	return string(r.Stdout)
}

func (r Result) StderrString() string {
	return string(r.Stderr)
}
