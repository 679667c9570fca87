package domainfx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(DatabaseConfigProvider),
	fx.Provide(DumpConfigProvider),
	fx.Provide(DatabaseDumper),
	fx.Provide(DatabaseImporter),
	fx.Provide(SiteArchiver),
	fx.Provide(SiteExtractor),
	fx.Provide(Sealer),
	fx.Provide(Notifier),
	fx.Provide(NewCron),
	fx.Provide(RotationEngine),
	fx.Provide(BackupService),
	fx.Provide(RestoreService),
	fx.Provide(BackupManager),
	fx.Provide(StdoutOutput),
	fx.Invoke(RunCommand),
)

var KeygenModule = fx.Options(
	fx.Invoke(RunKeygen),
)
