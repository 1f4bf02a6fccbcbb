package process

// State is the lifecycle state of a supervised server process.
type State int

const (
	// StateStarting covers the time between spawn and the end of the startup grace period.
	StateStarting State = iota

	// StateRunning means the server survived its startup grace period.
	StateRunning

	// StateKilled means SIGKILL has been sent to the process group but the process has not
	// been reaped yet.
	StateKilled

	// StateReaped means Wait has returned; the PID may already belong to someone else.
	StateReaped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateKilled:
		return "killed"
	case StateReaped:
		return "reaped"
	default:
		return "unknown"
	}
}

// IsLive returns true if the process may still be holding its port.
func (s State) IsLive() bool {
	return s != StateReaped
}

// KillReason says why the supervisor sent SIGKILL.
type KillReason string

const (
	KillNone     KillReason = ""
	KillDeadline KillReason = "deadline"
	KillStop     KillReason = "stop"
)
