package domain

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// StoreMarkerReader reads generation markers through the Store contract, so
// local and remote backends are inspected the same way.
type StoreMarkerReader struct {
	sealer Sealer
	mounts MountManager
}

func NewStoreMarkerReader(sealer Sealer, mounts MountManager) *StoreMarkerReader {
	return &StoreMarkerReader{
		sealer: sealer,
		mounts: mounts,
	}
}

// ReadMarker returns the day written in container's marker. A plain marker
// wins over the sealed one: it only survives when a run died before sealing.
func (r *StoreMarkerReader) ReadMarker(ctx context.Context, store Store, container string) (string, bool, error) {
	names, err := store.List(ctx, container)
	if err != nil {
		return "", false, err
	}

	var plain, sealed bool
	for _, name := range names {
		switch name {
		case MarkerFile:
			plain = true
		case Sealed(MarkerFile):
			sealed = true
		}
	}

	if !plain && !sealed {
		return "", false, nil
	}

	dir, err := r.mounts.Allocate()
	if err != nil {
		return "", false, errors.Wrap(err, "unable to allocate directory for marker")
	}
	defer r.mounts.Deallocate(dir)

	file := MarkerFile
	if !plain {
		file = Sealed(MarkerFile)
	}

	err = store.Download(ctx, path.Join(container, file), dir)
	if err != nil {
		return "", false, err
	}

	local := filepath.Join(dir, file)
	if !plain {
		local, err = r.sealer.Unseal(local)
		if err != nil {
			return "", false, errors.Wrap(err, "unable to unseal marker")
		}
	}

	content, err := os.ReadFile(local)
	if err != nil {
		return "", false, errors.Wrap(err, "unable to read marker")
	}

	return strings.TrimSpace(string(content)), true, nil
}
