package configfx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(ViperProvider),
	fx.Provide(Validator),
	fx.Provide(SettingsProvider),
	fx.Provide(RestoreOptionsProvider),
)
