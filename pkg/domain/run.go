package domain

import "time"

type RunKind string

const (
	RunKindBackup  RunKind = "backup"
	RunKindRestore RunKind = "restore"
)

type runStatus int

const (
	// Run is recorded, but not finished yet
	RunStatusStarted runStatus = iota

	// Run finished with a failure at some stage
	RunStatusFailure

	// Run finished successfully
	RunStatusSuccess

	// Run was found unfinished after restart, the process died while it was running
	RunStatusAborted
)

func (s runStatus) String() string {
	switch s {
	case RunStatusStarted:
		return "started"
	case RunStatusFailure:
		return "failure"
	case RunStatusSuccess:
		return "success"
	case RunStatusAborted:
		return "aborted"
	}

	return "unknown"
}

// Run is a journal entry of one backup or restore execution.
type Run struct {
	Id int64 // identifier for DB

	RunId string
	Kind  RunKind
	Day   string

	Status runStatus

	LocalOutcome  string
	RemoteOutcome string

	// failure details, empty for successful runs
	Stage     string
	ErrorKind string
	Error     string

	CreatedAt  time.Time
	FinishedAt *time.Time
}
