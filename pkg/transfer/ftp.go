package transfer

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/wpbackup/pkg/domain"
)

type FTPConfig struct {
	Address            string        `mapstructure:"address"`
	User               string        `mapstructure:"user"`
	Password           string        `mapstructure:"password"`
	Root               string        `mapstructure:"path"`
	TLS                bool          `mapstructure:"tls"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

const defaultFTPTimeout = 60 * time.Second

type ftpConn interface {
	List(path string) ([]*ftp.Entry, error)
	MakeDir(path string) error
	RemoveDir(path string) error
	Delete(path string) error
	Rename(from, to string) error
	Stor(path string, r io.Reader) error
	Retr(path string) (io.ReadCloser, error)
	Quit() error
}

type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) Retr(path string) (io.ReadCloser, error) {
	return c.ServerConn.Retr(path)
}

// FTPStore is the remote backend. Every operation runs under the configured
// timeout; a connection that timed out is dropped and dialed again on the
// next operation.
type FTPStore struct {
	logger logrus.FieldLogger
	config FTPConfig

	dial func(ctx context.Context) (ftpConn, error)
	conn ftpConn
}

func NewFTPStore(logger logrus.FieldLogger, config FTPConfig) *FTPStore {
	if config.Timeout <= 0 {
		config.Timeout = defaultFTPTimeout
	}
	if config.Root == "" {
		config.Root = "/"
	}

	s := &FTPStore{
		logger: logger,
		config: config,
	}
	s.dial = s.dialServer

	return s
}

func (s *FTPStore) Name() string {
	return "ftp"
}

func (s *FTPStore) dialServer(ctx context.Context) (ftpConn, error) {
	var tlsConfig *tls.Config

	if s.config.TLS {
		host, _, err := net.SplitHostPort(s.config.Address)
		if err != nil {
			host = s.config.Address
		}

		tlsConfig = &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: s.config.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		}
	}

	options := []ftp.DialOption{ftp.DialWithDialFunc(s.idleDialer(ctx, tlsConfig))}
	if tlsConfig != nil {
		options = append(options, ftp.DialWithExplicitTLS(tlsConfig))
	}

	s.logger.WithField("address", s.config.Address).Debug("Connecting to FTP server")

	c, err := ftp.Dial(s.config.Address, options...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to FTP server")
	}

	err = c.Login(s.config.User, s.config.Password)
	if err != nil {
		c.Quit()
		return nil, errors.Wrap(err, "unable to login to FTP server")
	}

	return serverConn{c}, nil
}

// idleDialer returns the dial function of one session. The first connection
// it opens is the control connection, later ones are data connections. Each of
// them fails once it makes no progress for the store timeout. The client does
// not wrap data connections opened by a custom dial function, so with TLS they
// are wrapped here.
func (s *FTPStore) idleDialer(ctx context.Context, tlsConfig *tls.Config) func(network, address string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: s.config.Timeout}
	control := true

	return func(network, address string) (net.Conn, error) {
		dialCtx := context.Background()
		if control {
			dialCtx = ctx
		}

		conn, err := dialer.DialContext(dialCtx, network, address)
		if err != nil {
			return nil, err
		}

		idle := newIdleConn(conn, s.config.Timeout)

		if control {
			control = false
			return idle, nil
		}

		if tlsConfig != nil {
			return tls.Client(idle, tlsConfig), nil
		}

		return idle, nil
	}
}

// Close ends the FTP session if there is one.
func (s *FTPStore) Close() error {
	if s.conn == nil {
		return nil
	}

	err := s.conn.Quit()
	s.conn = nil

	return err
}

func (s *FTPStore) fullPath(rel string) string {
	return path.Join(s.config.Root, rel)
}

func (s *FTPStore) List(ctx context.Context, dir string) ([]string, error) {
	var names []string

	err := s.call(ctx, "list", dir, func(c ftpConn) error {
		entries, err := c.List(s.fullPath(dir))
		if err != nil {
			return err
		}

		names = entryNames(entries)
		return nil
	})

	return names, err
}

func (s *FTPStore) MakeDir(ctx context.Context, dir string) error {
	return s.call(ctx, "make_dir", dir, func(c ftpConn) error {
		return c.MakeDir(s.fullPath(dir))
	})
}

func (s *FTPStore) RemoveDir(ctx context.Context, dir string) error {
	return s.call(ctx, "remove_dir", dir, func(c ftpConn) error {
		return c.RemoveDir(s.fullPath(dir))
	})
}

func (s *FTPStore) Remove(ctx context.Context, file string) error {
	return s.call(ctx, "remove", file, func(c ftpConn) error {
		return c.Delete(s.fullPath(file))
	})
}

func (s *FTPStore) Rename(ctx context.Context, from, to string) error {
	return s.call(ctx, "rename", from+" -> "+to, func(c ftpConn) error {
		return c.Rename(s.fullPath(from), s.fullPath(to))
	})
}

func (s *FTPStore) Upload(ctx context.Context, localPath, dir string) error {
	target := path.Join(dir, filepath.Base(localPath))

	return s.call(ctx, "upload", target, func(c ftpConn) error {
		f, err := os.Open(localPath)
		if err != nil {
			return err
		}
		defer f.Close()

		return c.Stor(s.fullPath(target), f)
	})
}

func (s *FTPStore) Download(ctx context.Context, file, localDir string) error {
	return s.call(ctx, "download", file, func(c ftpConn) error {
		r, err := c.Retr(s.fullPath(file))
		if err != nil {
			return err
		}
		defer r.Close()

		target := filepath.Join(localDir, path.Base(file))

		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
		if err != nil {
			return err
		}

		_, err = io.Copy(out, r)
		if err != nil {
			out.Close()
			os.Remove(target)
			return err
		}

		return out.Close()
	})
}

// call runs fn on the connection. There is no deadline on the operation as a
// whole: connections fail by themselves once idle for the store timeout, so
// a slow transfer that keeps moving is never cut.
func (s *FTPStore) call(ctx context.Context, op, address string, fn func(ftpConn) error) error {
	if err := ctx.Err(); err != nil {
		return domain.NewTransferError(op, address, err)
	}

	if s.conn == nil {
		c, err := s.dial(ctx)
		if err != nil {
			return domain.NewTransferError(op, address, err)
		}
		s.conn = c
	}

	c := s.conn
	done := make(chan error, 1)

	go func() {
		done <- fn(c)
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}

		transferErr := domain.NewTransferError(op, address, err)
		if transferErr.Timeout {
			s.logger.WithFields(logrus.Fields{"op": op, "address": address}).Warn("FTP connection stalled, dropping it")
			s.drop(c)
		}

		return transferErr

	case <-ctx.Done():
		s.logger.WithFields(logrus.Fields{"op": op, "address": address}).Warn("FTP operation canceled, dropping connection")

		// Quit is the only call made while fn still runs: it closes the
		// connection under fn, and fn is waited for before returning
		s.drop(c)
		<-done

		return domain.NewTransferError(op, address, ctx.Err())
	}
}

func (s *FTPStore) drop(c ftpConn) {
	s.conn = nil

	if err := c.Quit(); err != nil {
		s.logger.WithError(err).Debug("Unable to quit FTP session")
	}
}

func entryNames(entries []*ftp.Entry) []string {
	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := path.Base(strings.TrimSuffix(entry.Name, "/"))
		if name == "." || name == ".." || name == "" {
			continue
		}

		names = append(names, name)
	}

	return names
}
