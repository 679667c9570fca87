package transfer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/yurykabanov/wpbackup/pkg/domain"
)

// LocalStore keeps containers as directories under root.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	err := os.MkdirAll(root, 0750)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create local backup root %s", root)
	}

	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Name() string {
	return "local"
}

func (s *LocalStore) Path(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func (s *LocalStore) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewTransferError("list", dir, err)
	}

	entries, err := os.ReadDir(s.Path(dir))
	if err != nil {
		return nil, domain.NewTransferError("list", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return names, nil
}

func (s *LocalStore) MakeDir(ctx context.Context, dir string) error {
	return s.do(ctx, "make_dir", dir, func() error {
		return os.Mkdir(s.Path(dir), 0750)
	})
}

func (s *LocalStore) RemoveDir(ctx context.Context, dir string) error {
	return s.do(ctx, "remove_dir", dir, func() error {
		info, err := os.Stat(s.Path(dir))
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return errors.New("not a directory")
		}

		return os.Remove(s.Path(dir))
	})
}

func (s *LocalStore) Remove(ctx context.Context, file string) error {
	return s.do(ctx, "remove", file, func() error {
		return os.Remove(s.Path(file))
	})
}

func (s *LocalStore) Rename(ctx context.Context, from, to string) error {
	return s.do(ctx, "rename", from+" -> "+to, func() error {
		// os.Rename replaces an empty target directory on some platforms
		if _, err := os.Stat(s.Path(to)); err == nil {
			return os.ErrExist
		}

		return os.Rename(s.Path(from), s.Path(to))
	})
}

func (s *LocalStore) Upload(ctx context.Context, localPath, dir string) error {
	target := filepath.Join(s.Path(dir), filepath.Base(localPath))

	return s.do(ctx, "upload", dir+"/"+filepath.Base(localPath), func() error {
		return CopyFile(localPath, target)
	})
}

func (s *LocalStore) Download(ctx context.Context, file, localDir string) error {
	target := filepath.Join(localDir, filepath.Base(filepath.FromSlash(file)))

	return s.do(ctx, "download", file, func() error {
		return CopyFile(s.Path(file), target)
	})
}

func (s *LocalStore) do(ctx context.Context, op, address string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return domain.NewTransferError(op, address, err)
	}

	if err := fn(); err != nil {
		return domain.NewTransferError(op, address, err)
	}

	return nil
}
