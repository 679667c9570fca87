package artifact

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/wpbackup/pkg/appcontext"
)

// TarExtractor unpacks a tar.gz archive below a root directory, overwriting
// existing files. Entries resolving outside of root are rejected.
type TarExtractor struct {
	logger logrus.FieldLogger
}

func NewTarExtractor(logger logrus.FieldLogger) *TarExtractor {
	return &TarExtractor{logger: logger}
}

func (e *TarExtractor) Extract(ctx context.Context, archive, root string) error {
	logger := appcontext.LoggerFromContext(e.logger, ctx)

	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	f, err := os.Open(archive)
	if err != nil {
		return errors.Wrapf(err, "unable to open archive %s", archive)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "archive %s is not gzipped", archive)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	entries := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "unable to read archive")
		}

		err = extractEntry(tr, header, root)
		if err != nil {
			return errors.Wrapf(err, "unable to extract %s", header.Name)
		}

		entries++
	}

	logger.WithFields(logrus.Fields{"entries": entries, "root": root}).Debug("Site archive extracted")

	return nil
}

// destPath joins name to root and refuses results escaping root.
func destPath(root, name string) (string, error) {
	dest := filepath.Join(root, filepath.FromSlash(name))

	if dest == root {
		return dest, nil
	}

	prefix := root
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}

	if !strings.HasPrefix(dest, prefix) {
		return "", errors.Errorf("entry %q escapes extraction root", name)
	}

	return dest, nil
}

func extractEntry(tr *tar.Reader, header *tar.Header, root string) error {
	dest, err := destPath(root, header.Name)
	if err != nil {
		return err
	}

	mode := os.FileMode(header.Mode).Perm()

	switch header.Typeflag {
	case tar.TypeDir:
		err = os.MkdirAll(dest, 0755)
		if err != nil {
			return err
		}
		return os.Chmod(dest, mode)

	case tar.TypeReg:
		err = os.MkdirAll(filepath.Dir(dest), 0755)
		if err != nil {
			return err
		}

		// never write through an existing symlink
		if info, err := os.Lstat(dest); err == nil && info.Mode()&os.ModeSymlink != 0 {
			if err := os.Remove(dest); err != nil {
				return err
			}
		}

		out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
		if err != nil {
			return err
		}

		_, err = io.Copy(out, tr)
		if err != nil {
			out.Close()
			return err
		}

		err = out.Close()
		if err != nil {
			return err
		}

		return os.Chmod(dest, mode)

	case tar.TypeSymlink:
		err = os.MkdirAll(filepath.Dir(dest), 0755)
		if err != nil {
			return err
		}

		if _, err := os.Lstat(dest); err == nil {
			if err := os.Remove(dest); err != nil {
				return err
			}
		}

		return os.Symlink(header.Linkname, dest)

	case tar.TypeLink:
		target, err := destPath(root, header.Linkname)
		if err != nil {
			return err
		}

		os.Remove(dest)

		return os.Link(target, dest)

	default:
		// devices and fifos are not part of a site tree
		return nil
	}
}
