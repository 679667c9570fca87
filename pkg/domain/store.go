package domain

import "context"

// Store is a hierarchical container store. Paths are slash separated and
// relative to the store root.
type Store interface {
	// Name identifies the backend in logs and errors
	Name() string

	// List returns names of entries in dir ("" is the root)
	List(ctx context.Context, dir string) ([]string, error)

	// MakeDir fails if dir already exists
	MakeDir(ctx context.Context, dir string) error

	// RemoveDir fails if dir is not empty
	RemoveDir(ctx context.Context, dir string) error

	Remove(ctx context.Context, file string) error
	Rename(ctx context.Context, from, to string) error

	// Upload copies local file into dir keeping its base name
	Upload(ctx context.Context, localPath, dir string) error

	// Download copies file into local directory keeping its base name
	Download(ctx context.Context, file, localDir string) error
}

// LocalStore is a Store whose containers are directories on this host.
type LocalStore interface {
	Store

	// Path returns filesystem path of store relative path
	Path(rel string) string
}

type MountManager interface {
	Allocate() (string, error)
	AllocateNamed(name string) (string, error)
	Deallocate(string) error
}

type Sealer interface {
	// Seal encrypts file in place, returning the sealed file path
	Seal(path string) (string, error)

	// Unseal decrypts a sealed file next to it, returning the plain file path
	Unseal(path string) (string, error)
}

type DatabaseDumper interface {
	Dump(ctx context.Context, dest string) error
}

type SiteArchiver interface {
	Archive(ctx context.Context, source, dest string) error
}

type DatabaseImporter interface {
	Import(ctx context.Context, dump string) error
}

type SiteExtractor interface {
	Extract(ctx context.Context, archive, root string) error
}

type Notifier interface {
	Notify(subject, body string) error
}
