package mount

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Manager hands out working directories under a common base.
type Manager struct {
	base string
}

func New(base string) *Manager {
	return &Manager{
		base: base,
	}
}

// Allocate creates a fresh uniquely named directory.
func (m *Manager) Allocate() (string, error) {
	return m.AllocateNamed(".wpbackup-" + uuid.New().String())
}

// AllocateNamed creates base/name and fails if it already exists.
func (m *Manager) AllocateNamed(name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", errors.Errorf("invalid working directory name %q", name)
	}

	dir := filepath.Join(m.base, name)

	err := os.Mkdir(dir, 0700)
	if err != nil {
		return "", errors.Wrapf(err, "unable to create working directory %s", dir)
	}

	return dir, nil
}

func (m *Manager) Deallocate(dir string) error {
	return os.RemoveAll(dir)
}
