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

// archiveWriters closes file, gzip and tar writers in reverse order.
type archiveWriters struct {
	tarWriter *tar.Writer
	closers   []io.Closer
}

func (aw *archiveWriters) Close() error {
	var firstErr error

	for i := len(aw.closers) - 1; i >= 0; i-- {
		if err := aw.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// TarArchiver packs a directory tree into a tar.gz archive. Entry names are
// the absolute paths of the files without the leading separator, so the
// archive extracts back in place when the extraction root is "/".
type TarArchiver struct {
	logger logrus.FieldLogger
}

func NewTarArchiver(logger logrus.FieldLogger) *TarArchiver {
	return &TarArchiver{logger: logger}
}

func (a *TarArchiver) Archive(ctx context.Context, source, dest string) (err error) {
	logger := appcontext.LoggerFromContext(a.logger, ctx)

	source, err = filepath.Abs(source)
	if err != nil {
		return err
	}

	info, err := os.Stat(source)
	if err != nil {
		return errors.Wrapf(err, "unable to archive %s", source)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", source)
	}

	part, err := filepath.Abs(dest + ".part")
	if err != nil {
		return err
	}

	out, err := os.OpenFile(part, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return errors.Wrapf(err, "unable to create archive %s", part)
	}

	gz := gzip.NewWriter(out)
	aw := &archiveWriters{
		tarWriter: tar.NewWriter(gz),
		closers:   []io.Closer{out, gz},
	}
	aw.closers = append(aw.closers, aw.tarWriter)

	files := 0

	err = filepath.Walk(source, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == part {
			return nil
		}

		files++

		return addToArchive(aw.tarWriter, p, info)
	})

	closeErr := aw.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(part)
		return errors.Wrapf(err, "unable to archive %s", source)
	}

	logger.WithField("entries", files).Debug("Site archive written")

	return os.Rename(part, dest)
}

func archiveName(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(p), "/")
}

func addToArchive(tw *tar.Writer, p string, info os.FileInfo) error {
	var link string

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(p)
		if err != nil {
			return err
		}
		link = target
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}

	header.Name = archiveName(p)
	if info.IsDir() {
		header.Name += "/"
	}

	err = tw.WriteHeader(header)
	if err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.CopyN(tw, f, header.Size)

	return err
}
