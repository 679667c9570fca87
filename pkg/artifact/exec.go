package artifact

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/wpbackup/pkg/appcontext"
)

const (
	defaultDumpBinary   = "mysqldump"
	defaultImportBinary = "mysql"

	maxStderr = 4096
)

// ExecDumper runs mysqldump on this host and gzips its output.
type ExecDumper struct {
	logger logrus.FieldLogger
	db     DatabaseConfig
	binary string
}

func NewExecDumper(logger logrus.FieldLogger, db DatabaseConfig, config DumpConfig) *ExecDumper {
	binary := config.DumpBinary
	if binary == "" {
		binary = defaultDumpBinary
	}

	return &ExecDumper{
		logger: logger,
		db:     db,
		binary: binary,
	}
}

func (d *ExecDumper) Dump(ctx context.Context, dest string) (err error) {
	logger := appcontext.LoggerFromContext(d.logger, ctx)

	args := append(d.db.connectionArgs(), d.db.Name)

	cmd := exec.CommandContext(ctx, d.binary, args...)
	cmd.Env = append(os.Environ(), d.db.env()...)

	var stderr bytes.Buffer
	cmd.Stderr = &limitedBuffer{buf: &stderr, limit: maxStderr}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "unable to open dump output")
	}

	part := dest + ".part"

	out, err := os.OpenFile(part, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return errors.Wrapf(err, "unable to create dump file %s", part)
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(part)
		}
	}()

	logger.WithField("binary", d.binary).Debug("Starting database dump")

	err = cmd.Start()
	if err != nil {
		return errors.Wrapf(err, "unable to start %s", d.binary)
	}

	gz := gzip.NewWriter(out)

	_, copyErr := io.Copy(gz, stdout)
	if copyErr != nil {
		cmd.Process.Kill()
	}

	err = cmd.Wait()
	if copyErr != nil {
		err = errors.Wrap(copyErr, "unable to write dump")
		return err
	}
	if err != nil {
		return errors.Wrapf(err, "%s failed: %s", d.binary, strings.TrimSpace(stderr.String()))
	}

	err = gz.Close()
	if err != nil {
		return errors.Wrap(err, "unable to finish dump compression")
	}

	err = out.Close()
	if err != nil {
		return errors.Wrap(err, "unable to close dump file")
	}

	return os.Rename(part, dest)
}

// ExecImporter feeds a gzipped dump into the mysql client.
type ExecImporter struct {
	logger logrus.FieldLogger
	db     DatabaseConfig
	binary string
}

func NewExecImporter(logger logrus.FieldLogger, db DatabaseConfig, config DumpConfig) *ExecImporter {
	binary := config.ImportBinary
	if binary == "" {
		binary = defaultImportBinary
	}

	return &ExecImporter{
		logger: logger,
		db:     db,
		binary: binary,
	}
}

func (i *ExecImporter) Import(ctx context.Context, dump string) error {
	logger := appcontext.LoggerFromContext(i.logger, ctx)

	f, err := os.Open(dump)
	if err != nil {
		return errors.Wrapf(err, "unable to open dump %s", dump)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "dump %s is not gzipped", dump)
	}
	defer gz.Close()

	args := append(i.db.connectionArgs(), i.db.Name)

	cmd := exec.CommandContext(ctx, i.binary, args...)
	cmd.Env = append(os.Environ(), i.db.env()...)
	cmd.Stdin = gz

	var stderr bytes.Buffer
	cmd.Stderr = &limitedBuffer{buf: &stderr, limit: maxStderr}

	logger.WithField("binary", i.binary).Debug("Importing database dump")

	err = cmd.Run()
	if err != nil {
		return errors.Wrapf(err, "%s failed: %s", i.binary, strings.TrimSpace(stderr.String()))
	}

	return nil
}

type limitedBuffer struct {
	buf   *bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}

	return len(p), nil
}
