package domainfx

import (
	docker "github.com/docker/docker/client"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/yurykabanov/wpbackup/pkg/artifact"
	"github.com/yurykabanov/wpbackup/pkg/domain"
	"github.com/yurykabanov/wpbackup/pkg/notify"
	"github.com/yurykabanov/wpbackup/pkg/seal"
)

const (
	ConfigDatabase = "db"
	ConfigDump     = "dump"
	ConfigSMTP     = "smtp"
	ConfigKeyPath  = "crypto.key_path"
)

func DatabaseConfigProvider(v *viper.Viper) (artifact.DatabaseConfig, error) {
	var config artifact.DatabaseConfig

	err := v.UnmarshalKey(ConfigDatabase, &config)
	if err != nil {
		return config, errors.Wrap(err, "Unable to unmarshal database config")
	}

	return config, nil
}

func DumpConfigProvider(v *viper.Viper) (artifact.DumpConfig, error) {
	var config artifact.DumpConfig

	err := v.UnmarshalKey(ConfigDump, &config)
	if err != nil {
		return config, errors.Wrap(err, "Unable to unmarshal dump config")
	}

	switch config.Runner {
	case "", artifact.RunnerExec, artifact.RunnerDocker:
	default:
		return config, errors.Errorf("Unknown dump runner %q", config.Runner)
	}

	return config, nil
}

func DatabaseDumper(
	logger *logrus.Logger,
	db artifact.DatabaseConfig,
	config artifact.DumpConfig,
	client *docker.Client,
) domain.DatabaseDumper {
	if config.Runner == artifact.RunnerDocker {
		return artifact.NewDockerDumper(logger, client, db, config)
	}

	return artifact.NewExecDumper(logger, db, config)
}

func DatabaseImporter(logger *logrus.Logger, db artifact.DatabaseConfig, config artifact.DumpConfig) domain.DatabaseImporter {
	return artifact.NewExecImporter(logger, db, config)
}

func SiteArchiver(logger *logrus.Logger) domain.SiteArchiver {
	return artifact.NewTarArchiver(logger)
}

func SiteExtractor(logger *logrus.Logger) domain.SiteExtractor {
	return artifact.NewTarExtractor(logger)
}

func Sealer(v *viper.Viper) (domain.Sealer, error) {
	keyPath := v.GetString(ConfigKeyPath)

	key, err := seal.LoadKey(keyPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to load sealing key %s", keyPath)
	}

	sealer, err := seal.New(key)
	if err != nil {
		return nil, err
	}

	return sealer, nil
}

func Notifier(v *viper.Viper, logger *logrus.Logger) (domain.Notifier, error) {
	var config notify.SMTPConfig

	err := v.UnmarshalKey(ConfigSMTP, &config)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to unmarshal smtp config")
	}

	return notify.NewSMTPNotifier(logger, config), nil
}
