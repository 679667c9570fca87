package transferfx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(LocalStore),
	fx.Provide(FTPConfigProvider),
	fx.Provide(RemoteStore),
	fx.Provide(MountManager),
)
