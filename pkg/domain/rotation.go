package domain

import (
	"context"
	"fmt"
	"path"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/wpbackup/pkg/appcontext"
)

type RotationOutcome int

const (
	// Slot 0 already holds today's generation, nothing was changed
	OutcomeAlreadyDone RotationOutcome = iota

	// Slot 0 had no marker (first run), containers were created but not shifted
	OutcomeInitialized

	// Generations were shifted and a fresh slot 0 was created
	OutcomeRotated
)

func (o RotationOutcome) String() string {
	switch o {
	case OutcomeAlreadyDone:
		return "already_done"
	case OutcomeInitialized:
		return "initialized"
	case OutcomeRotated:
		return "rotated"
	}

	return fmt.Sprintf("outcome(%d)", int(o))
}

// Rotated reports whether the run has to rewrite the remote side as well:
// both fresh initialization and shift count as rotation.
func (o RotationOutcome) Rotated() bool {
	return o != OutcomeAlreadyDone
}

func (o RotationOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

type markerReader interface {
	ReadMarker(ctx context.Context, store Store, container string) (string, bool, error)
}

// RotationEngine maintains the retention window of daily generations on
// a Store:
//
//	DAYJ  DAYJ-1  DAYJ-2 ... DAYJ-(N-1)
//	 |      |       |            |
//	 +----->+------>+-- ... ---->+----> discarded
//
// A rotation evicts the oldest container, renames every remaining one to the
// next address starting from the oldest, and creates an empty DAYJ.
type RotationEngine struct {
	logger  logrus.FieldLogger
	markers markerReader
}

func NewRotationEngine(logger logrus.FieldLogger, markers markerReader) *RotationEngine {
	return &RotationEngine{
		logger:  logger,
		markers: markers,
	}
}

// EnsureTodayRotated makes slot 0 of store ready to receive today's
// artifacts, rotating at most once per calendar day.
func (e *RotationEngine) EnsureTodayRotated(ctx context.Context, store Store, retention int, today string) (RotationOutcome, error) {
	ctx = appcontext.WithBackend(ctx, store.Name())
	logger := appcontext.LoggerFromContext(e.logger, ctx)

	_, err := e.EnsureContainers(ctx, store, retention)
	if err != nil {
		return OutcomeAlreadyDone, err
	}

	day, found, err := e.markers.ReadMarker(ctx, store, ContainerAddress(0))
	if err != nil {
		return OutcomeAlreadyDone, &Error{
			Kind:    KindMarker,
			Backend: store.Name(),
			Op:      "read_marker",
			Address: ContainerAddress(0),
			Err:     err,
		}
	}

	if !found {
		logger.Info("No marker in newest generation, treating as first run")
		return OutcomeInitialized, nil
	}

	if !IsRotationDue(day, today) {
		logger.WithField("day", day).Info("Generations already rotated today")
		return OutcomeAlreadyDone, nil
	}

	logger.WithFields(logrus.Fields{"marker_day": day, "today": today}).Info("Rotating generations")

	err = e.Rotate(ctx, store, retention)
	if err != nil {
		return OutcomeAlreadyDone, err
	}

	return OutcomeRotated, nil
}

// EnsureContainers creates every missing container of the retention window
// and returns the generations it had to create.
func (e *RotationEngine) EnsureContainers(ctx context.Context, store Store, retention int) ([]int, error) {
	logger := appcontext.LoggerFromContext(e.logger, appcontext.WithBackend(ctx, store.Name()))

	names, err := store.List(ctx, "")
	if err != nil {
		return nil, &Error{Kind: KindInitialization, Backend: store.Name(), Op: "list", Address: "/", Err: err}
	}

	existing := make(map[int]bool, len(names))
	for _, name := range names {
		generation, ok := ParseContainerAddress(name)
		if !ok {
			continue
		}

		if generation >= retention {
			logger.WithField("container", name).Warn("Container is outside of retention window and is left untouched")
			continue
		}

		existing[generation] = true
	}

	var created []int
	for generation := 0; generation < retention; generation++ {
		if existing[generation] {
			continue
		}

		address := ContainerAddress(generation)
		logger.WithField("container", address).Debug("Creating missing container")

		err = store.MakeDir(ctx, address)
		if err != nil {
			return created, &Error{Kind: KindInitialization, Backend: store.Name(), Op: "make_dir", Address: address, Err: err}
		}

		created = append(created, generation)
	}

	return created, nil
}

// Rotate performs evict-then-shift unconditionally. It stops at the first
// failing operation and leaves the store as is.
func (e *RotationEngine) Rotate(ctx context.Context, store Store, retention int) error {
	logger := appcontext.LoggerFromContext(e.logger, appcontext.WithBackend(ctx, store.Name()))

	oldest := ContainerAddress(retention - 1)

	logger.WithField("container", oldest).Debug("Evicting oldest generation")
	if op, err := e.evict(ctx, store, oldest); err != nil {
		return &Error{Kind: KindEvictionFailed, Backend: store.Name(), Op: op, Address: oldest, Err: err}
	}

	// Shifting from the oldest index down never renames onto an occupied address
	for generation := retention - 2; generation >= 0; generation-- {
		from, to := ContainerAddress(generation), ContainerAddress(generation+1)

		logger.WithFields(logrus.Fields{"from": from, "to": to}).Debug("Shifting generation")

		err := store.Rename(ctx, from, to)
		if err != nil {
			return &Error{Kind: KindShiftFailed, Backend: store.Name(), Op: "rename", Address: from + " -> " + to, Err: err}
		}
	}

	newest := ContainerAddress(0)

	err := store.MakeDir(ctx, newest)
	if err != nil {
		return &Error{Kind: KindShiftFailed, Backend: store.Name(), Op: "make_dir", Address: newest, Err: err}
	}

	return nil
}

func (e *RotationEngine) evict(ctx context.Context, store Store, container string) (string, error) {
	names, err := store.List(ctx, container)
	if err != nil {
		return "list", err
	}

	for _, name := range names {
		err = store.Remove(ctx, path.Join(container, name))
		if err != nil {
			return "remove", err
		}
	}

	err = store.RemoveDir(ctx, container)
	if err != nil {
		return "remove_dir", err
	}

	return "", nil
}
