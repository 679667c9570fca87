package domainfx

import (
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/wpbackup/pkg/domain"
)

func NewCron() *cron.Cron {
	return cron.New()
}

func RotationEngine(logger *logrus.Logger, sealer domain.Sealer, mounts domain.MountManager) *domain.RotationEngine {
	return domain.NewRotationEngine(logger, domain.NewStoreMarkerReader(sealer, mounts))
}

func BackupService(
	logger *logrus.Logger,
	settings domain.Settings,
	engine *domain.RotationEngine,
	local domain.LocalStore,
	remote domain.Store,
	dumper domain.DatabaseDumper,
	archiver domain.SiteArchiver,
	sealer domain.Sealer,
) *domain.BackupService {
	return domain.NewBackupService(logger, settings, engine, local, remote, dumper, archiver, sealer)
}

func RestoreService(
	logger *logrus.Logger,
	settings domain.Settings,
	local domain.LocalStore,
	remote domain.Store,
	mounts domain.MountManager,
	sealer domain.Sealer,
	importer domain.DatabaseImporter,
	extractor domain.SiteExtractor,
) *domain.RestoreService {
	return domain.NewRestoreService(logger, settings, local, remote, mounts, sealer, importer, extractor)
}

func BackupManager(
	logger *logrus.Logger,
	settings domain.Settings,
	backups *domain.BackupService,
	restores *domain.RestoreService,
	repository domain.RunRepository,
	notifier domain.Notifier,
	cron *cron.Cron,
) *domain.BackupManager {
	return domain.NewBackupManager(logger, settings, backups, restores, repository, notifier, cron)
}
