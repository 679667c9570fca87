package domain

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/wpbackup/pkg/appcontext"
)

type BackupService struct {
	logger logrus.FieldLogger

	settings Settings
	engine   *RotationEngine

	local  LocalStore
	remote Store

	dumper   DatabaseDumper
	archiver SiteArchiver
	sealer   Sealer

	now func() time.Time
}

// NewBackupService creates the daily cycle service. remote may be nil, in
// which case generations are only kept locally.
func NewBackupService(
	logger logrus.FieldLogger,
	settings Settings,
	engine *RotationEngine,
	local LocalStore,
	remote Store,
	dumper DatabaseDumper,
	archiver SiteArchiver,
	sealer Sealer,
) *BackupService {
	return &BackupService{
		logger:   logger,
		settings: settings,
		engine:   engine,
		local:    local,
		remote:   remote,
		dumper:   dumper,
		archiver: archiver,
		sealer:   sealer,
		now:      time.Now,
	}
}

// WithClock replaces the source of "today".
func (s *BackupService) WithClock(now func() time.Time) *BackupService {
	s.now = now
	return s
}

// RunDailyCycle rotates the local generations, writes and seals today's
// artifacts into DAYJ, then rotates and fills the remote mirror. It stops at
// the first failure without undoing completed steps.
func (s *BackupService) RunDailyCycle(ctx context.Context) (Report, error) {
	logger := appcontext.LoggerFromContext(s.logger, ctx)

	today := s.now().Format(DayLayout)
	report := Report{
		Day:           today,
		RemoteEnabled: s.remote != nil,
		LocalPath:     s.local.Path(ContainerAddress(0)),
	}

	outcome, err := s.engine.EnsureTodayRotated(ctx, s.local, s.settings.Retention, today)
	if err != nil {
		return report, atStage(StageRotateLocal, KindShiftFailed, err)
	}
	report.LocalOutcome = outcome

	logger.WithField("outcome", outcome).Info("Local generations ready")

	sealed, err := s.produce(ctx, today)
	if err != nil {
		return report, err
	}
	report.Members = make([]string, 0, len(sealed))
	for _, p := range sealed {
		report.Members = append(report.Members, filepath.Base(p))
	}

	if s.remote == nil {
		logger.Warn("Remote backend is not configured, skipping mirroring")
		return report, nil
	}

	remoteOutcome, err := s.rotateRemote(ctx, outcome, today)
	if err != nil {
		return report, atStage(StageRotateRemote, KindShiftFailed, err)
	}
	report.RemoteOutcome = &remoteOutcome

	logger.WithField("outcome", remoteOutcome).Info("Remote generations ready")

	for _, p := range sealed {
		logger.WithField("file", filepath.Base(p)).Info("Transferring to remote")

		err = s.remote.Upload(ctx, p, ContainerAddress(0))
		if err != nil {
			return report, &Error{
				Stage:   StageUpload,
				Kind:    KindTransfer,
				Backend: s.remote.Name(),
				Op:      "upload",
				Address: ContainerAddress(0) + "/" + filepath.Base(p),
				Err:     err,
			}
		}
	}

	return report, nil
}

// produce writes the three members into local slot 0 and seals them,
// returning sealed paths in member order.
func (s *BackupService) produce(ctx context.Context, today string) ([]string, error) {
	logger := appcontext.LoggerFromContext(s.logger, ctx)

	slot := s.local.Path(ContainerAddress(0))

	dump := filepath.Join(slot, DumpFile(s.settings.Database))
	logger.WithField("file", dump).Info("Dumping database")

	err := s.dumper.Dump(ctx, dump)
	if err != nil {
		return nil, &Error{Stage: StageDump, Kind: KindDump, Backend: s.local.Name(), Address: dump, Err: err}
	}

	archive := filepath.Join(slot, SiteArchiveFile)
	logger.WithField("file", archive).Info("Archiving site")

	err = s.archiver.Archive(ctx, s.settings.SitePath, archive)
	if err != nil {
		return nil, &Error{Stage: StageArchive, Kind: KindArchive, Backend: s.local.Name(), Address: archive, Err: err}
	}

	marker := filepath.Join(slot, MarkerFile)

	err = os.WriteFile(marker, []byte(today), 0640)
	if err != nil {
		return nil, &Error{
			Stage:   StageMarker,
			Kind:    KindMarker,
			Backend: s.local.Name(),
			Address: marker,
			Err:     errors.Wrap(err, "unable to write marker"),
		}
	}

	var sealed []string
	for _, p := range []string{dump, archive, marker} {
		logger.WithField("file", filepath.Base(p)).Debug("Sealing file")

		out, err := s.sealer.Seal(p)
		if err != nil {
			return nil, &Error{Stage: StageSeal, Kind: KindSeal, Backend: s.local.Name(), Op: filepath.Base(p), Address: p, Err: err}
		}

		sealed = append(sealed, out)
	}

	return sealed, nil
}

func (s *BackupService) rotateRemote(ctx context.Context, local RotationOutcome, today string) (RotationOutcome, error) {
	retention := s.settings.Retention

	if s.settings.RemotePolicy == RemotePolicyMarker {
		return s.engine.EnsureTodayRotated(ctx, s.remote, retention, today)
	}

	created, err := s.engine.EnsureContainers(ctx, s.remote, retention)
	if err != nil {
		return OutcomeAlreadyDone, err
	}

	switch {
	case local == OutcomeAlreadyDone:
		return OutcomeAlreadyDone, nil
	case local == OutcomeInitialized, len(created) > 0 && created[0] == 0:
		return OutcomeInitialized, nil
	}

	err = s.engine.Rotate(appcontext.WithBackend(ctx, s.remote.Name()), s.remote, retention)
	if err != nil {
		return OutcomeAlreadyDone, err
	}

	return OutcomeRotated, nil
}
