package domain

import (
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"
)

type Stage string

const (
	StageRotateLocal  Stage = "rotate-local"
	StageDump         Stage = "dump"
	StageArchive      Stage = "archive"
	StageMarker       Stage = "marker"
	StageSeal         Stage = "seal"
	StageRotateRemote Stage = "rotate-remote"
	StageUpload       Stage = "upload"

	StageResolve  Stage = "resolve"
	StageDownload Stage = "download"
	StageUnseal   Stage = "unseal"
	StageImport   Stage = "import"
	StageExtract  Stage = "extract"
)

type ErrorKind string

const (
	KindInitialization       ErrorKind = "initialization"
	KindEvictionFailed       ErrorKind = "eviction_failed"
	KindShiftFailed          ErrorKind = "shift_failed"
	KindMarker               ErrorKind = "marker"
	KindDump                 ErrorKind = "dump"
	KindArchive              ErrorKind = "archive"
	KindSeal                 ErrorKind = "seal"
	KindTransfer             ErrorKind = "transfer"
	KindDatabaseImportFailed ErrorKind = "database_import_failed"
	KindArchiveExtractFailed ErrorKind = "archive_extract_failed"
	KindResolution           ErrorKind = "resolution"
)

// Error is the tagged failure of a backup or restore run. Every Error is
// fatal to the run that produced it.
type Error struct {
	Stage   Stage
	Kind    ErrorKind
	Backend string
	Op      string
	Address string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s failed (%s)", e.Stage, e.Kind)

	if e.Backend != "" {
		fmt.Fprintf(&b, " on %s", e.Backend)
	}
	if e.Op != "" {
		fmt.Fprintf(&b, ": %s", e.Op)
	}
	if e.Address != "" {
		fmt.Fprintf(&b, " %s", e.Address)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err)
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TransferError is returned by Store implementations.
type TransferError struct {
	Op      string
	Address string
	Timeout bool
	Err     error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Address, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// NewTransferError tags err with store operation and address, detecting
// network timeouts on the way.
func NewTransferError(op, address string, err error) *TransferError {
	var netErr net.Error

	return &TransferError{
		Op:      op,
		Address: address,
		Timeout: errors.As(err, &netErr) && netErr.Timeout(),
		Err:     err,
	}
}

// IsTransient reports whether err was caused by a timeout rather than
// a protocol or authentication failure.
func IsTransient(err error) bool {
	var transferErr *TransferError
	if errors.As(err, &transferErr) {
		return transferErr.Timeout
	}

	return false
}

// atStage tags err with stage unless it is already tagged.
func atStage(stage Stage, kind ErrorKind, err error) error {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		if domainErr.Stage == "" {
			domainErr.Stage = stage
		}
		return domainErr
	}

	e := &Error{Stage: stage, Kind: kind, Err: err}

	var transferErr *TransferError
	if errors.As(err, &transferErr) {
		e.Op = transferErr.Op
		e.Address = transferErr.Address
	}

	return e
}
