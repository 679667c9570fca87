package domain

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/wpbackup/pkg/appcontext"
)

type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Remote restores are downloaded into "RESTORE-<timestamp>" under the local root
const (
	RestoreDirPrefix = "RESTORE-"
	restoreDirLayout = "20060102T150405"
)

type RestoreService struct {
	logger logrus.FieldLogger

	settings Settings

	local  LocalStore
	remote Store
	mounts MountManager

	sealer    Sealer
	importer  DatabaseImporter
	extractor SiteExtractor

	now func() time.Time
}

func NewRestoreService(
	logger logrus.FieldLogger,
	settings Settings,
	local LocalStore,
	remote Store,
	mounts MountManager,
	sealer Sealer,
	importer DatabaseImporter,
	extractor SiteExtractor,
) *RestoreService {
	return &RestoreService{
		logger:    logger,
		settings:  settings,
		local:     local,
		remote:    remote,
		mounts:    mounts,
		sealer:    sealer,
		importer:  importer,
		extractor: extractor,
		now:       time.Now,
	}
}

func (s *RestoreService) WithClock(now func() time.Time) *RestoreService {
	s.now = now
	return s
}

// Restore replays generation from source onto the live database and site
// tree. Both replays are destructive and are not rolled back on failure.
func (s *RestoreService) Restore(ctx context.Context, generation int, source Source) (RestoreOutcome, error) {
	logger := appcontext.LoggerFromContext(s.logger, ctx).WithFields(logrus.Fields{
		"generation": generation,
		"source":     source,
	})

	outcome := RestoreOutcome{Generation: generation, Source: source}

	address, err := ResolveGeneration(generation, s.settings.Retention)
	if err != nil {
		return outcome, err
	}
	outcome.Address = address

	dir, err := s.locate(ctx, address, source)
	if err != nil {
		return outcome, err
	}
	outcome.WorkDir = dir

	logger.WithField("directory", dir).Info("Generation located")

	var plain []string
	if source == SourceLocal {
		defer func() {
			for _, p := range plain {
				if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
					logger.WithError(err).WithField("file", p).Warn("Unable to remove decrypted file")
				}
			}
		}()
	}

	for _, member := range Members(s.settings.Database) {
		logger.WithField("file", member).Info("Decrypting")

		p, err := s.sealer.Unseal(filepath.Join(dir, Sealed(member)))
		if err != nil {
			return outcome, &Error{Stage: StageUnseal, Kind: KindSeal, Op: member, Address: address, Err: err}
		}

		plain = append(plain, p)
	}

	day, err := os.ReadFile(plain[2])
	if err == nil {
		outcome.Day = strings.TrimSpace(string(day))
	}

	logger.WithField("day", outcome.Day).Info("Importing database dump")

	err = s.importer.Import(ctx, plain[0])
	if err != nil {
		return outcome, &Error{Stage: StageImport, Kind: KindDatabaseImportFailed, Op: filepath.Base(plain[0]), Address: address, Err: err}
	}

	root := s.settings.RestoreRoot
	if root == "" {
		root = string(filepath.Separator)
	}

	logger.WithField("root", root).Info("Extracting site archive")

	err = s.extractor.Extract(ctx, plain[1], root)
	if err != nil {
		return outcome, &Error{Stage: StageExtract, Kind: KindArchiveExtractFailed, Op: filepath.Base(plain[1]), Address: address, Err: err}
	}

	return outcome, nil
}

// locate returns the local directory holding sealed members of address,
// downloading them first for remote source.
func (s *RestoreService) locate(ctx context.Context, address string, source Source) (string, error) {
	switch source {
	case SourceLocal:
		dir := s.local.Path(address)

		for _, member := range Members(s.settings.Database) {
			p := filepath.Join(dir, Sealed(member))

			if _, err := os.Stat(p); err != nil {
				return "", &Error{
					Stage:   StageResolve,
					Kind:    KindResolution,
					Backend: s.local.Name(),
					Op:      Sealed(member),
					Address: address,
					Err:     errors.Wrap(err, "generation is incomplete"),
				}
			}
		}

		return dir, nil

	case SourceRemote:
		if s.remote == nil {
			return "", &Error{Stage: StageResolve, Kind: KindResolution, Address: address, Err: errors.New("remote backend is not configured")}
		}

		dir, err := s.mounts.AllocateNamed(RestoreDirPrefix + s.now().Format(restoreDirLayout))
		if err != nil {
			return "", &Error{Stage: StageDownload, Kind: KindTransfer, Backend: s.local.Name(), Op: "make_dir", Err: err}
		}

		for _, member := range Members(s.settings.Database) {
			file := path.Join(address, Sealed(member))

			err = s.remote.Download(ctx, file, dir)
			if err != nil {
				return dir, &Error{Stage: StageDownload, Kind: KindTransfer, Backend: s.remote.Name(), Op: "download", Address: file, Err: err}
			}
		}

		return dir, nil
	}

	return "", &Error{Stage: StageResolve, Kind: KindResolution, Address: address, Err: errors.Errorf("unknown source %q", source)}
}
