package domain

import (
	"time"

	"github.com/pkg/errors"
)

// Report is the machine readable result of a daily cycle.
type Report struct {
	RunId         string           `json:"run_id,omitempty"`
	Day           string           `json:"day"`
	Success       bool             `json:"success"`
	LocalOutcome  RotationOutcome  `json:"local_outcome"`
	RemoteOutcome *RotationOutcome `json:"remote_outcome,omitempty"`
	RemoteEnabled bool             `json:"remote_enabled"`
	LocalPath     string           `json:"local_path,omitempty"`
	Members       []string         `json:"members,omitempty"`
	Error         *ErrorReport     `json:"error,omitempty"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
}

// RestoreOutcome is the machine readable result of a restore.
type RestoreOutcome struct {
	RunId      string       `json:"run_id,omitempty"`
	Generation int          `json:"generation"`
	Address    string       `json:"address"`
	Source     Source       `json:"source"`
	WorkDir    string       `json:"work_dir,omitempty"`
	Day        string       `json:"day,omitempty"`
	Success    bool         `json:"success"`
	Error      *ErrorReport `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

type ErrorReport struct {
	Stage     Stage     `json:"stage,omitempty"`
	Kind      ErrorKind `json:"kind,omitempty"`
	Backend   string    `json:"backend,omitempty"`
	Op        string    `json:"op,omitempty"`
	Address   string    `json:"address,omitempty"`
	Transient bool      `json:"transient"`
	Message   string    `json:"message"`
}

func NewErrorReport(err error) *ErrorReport {
	if err == nil {
		return nil
	}

	report := &ErrorReport{
		Transient: IsTransient(err),
		Message:   err.Error(),
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		report.Stage = domainErr.Stage
		report.Kind = domainErr.Kind
		report.Backend = domainErr.Backend
		report.Op = domainErr.Op
		report.Address = domainErr.Address
	}

	return report
}
