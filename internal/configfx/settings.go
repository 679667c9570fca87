package configfx

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/yurykabanov/wpbackup/pkg/domain"
)

// RestoreOptions are the command line arguments of the restore command.
type RestoreOptions struct {
	Generation int `validate:"min=0"`
	Source     domain.Source
}

func Validator() *validator.Validate {
	return validator.New()
}

func SettingsProvider(v *viper.Viper, validate *validator.Validate) (domain.Settings, error) {
	settings := domain.Settings{
		Retention:    v.GetInt("backup.retention"),
		LocalPath:    v.GetString("backup.local_path"),
		SitePath:     v.GetString("backup.site_path"),
		Database:     v.GetString("db.name"),
		RemotePolicy: domain.RemotePolicy(v.GetString("remote.policy")),
		RestoreRoot:  v.GetString("restore.root"),
		CronSpec:     v.GetString("schedule.cron_spec"),
		Timeout:      v.GetDuration("backup.timeout"),
	}

	err := validate.Struct(settings)
	if err != nil {
		return settings, errors.Wrap(err, "Invalid backup settings")
	}

	return settings, nil
}

func RestoreOptionsProvider(flagSet *pflag.FlagSet, validate *validator.Validate) (RestoreOptions, error) {
	generation, err := flagSet.GetInt(FlagDay)
	if err != nil {
		return RestoreOptions{}, err
	}

	local, err := flagSet.GetBool(FlagLocal)
	if err != nil {
		return RestoreOptions{}, err
	}

	options := RestoreOptions{
		Generation: generation,
		Source:     domain.SourceRemote,
	}
	if local {
		options.Source = domain.SourceLocal
	}

	err = validate.Struct(options)
	if err != nil {
		return options, errors.Wrap(err, "Invalid restore options")
	}

	return options, nil
}
