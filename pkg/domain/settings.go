package domain

import "time"

type RemotePolicy string

const (
	// Remote is rotated whenever local rotation happened
	RemotePolicyFollowLocal RemotePolicy = "follow_local"

	// Remote rotation is decided by the remote marker
	RemotePolicyMarker RemotePolicy = "marker"
)

// Settings is the configuration value passed to domain services.
type Settings struct {
	Retention int    `validate:"min=2"`
	LocalPath string `validate:"required"`
	SitePath  string `validate:"required"`
	Database  string `validate:"required"`

	RemotePolicy RemotePolicy `validate:"omitempty,oneof=follow_local marker"`

	// Restore target for site archive entries
	RestoreRoot string

	CronSpec string
	Timeout  time.Duration `validate:"min=0"`
}
