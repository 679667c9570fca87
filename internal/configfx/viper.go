package configfx

import (
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix              = "wpbackup"
	DefaultConfigDirectory = "wpbackup"
	DefaultConfigFile      = "wpbackup"

	ConfigKeyPath = "crypto.key_path"
	ConfigVerbose = "log.verbose"
)

var (
	defaultConfigPaths = []string{
		".",
		"./config",
		path.Join("/etc", DefaultConfigDirectory),
	}

	defaults = map[string]interface{}{
		"backup.retention":   7,
		"backup.local_path":  "/backup",
		"backup.site_path":   "/var/www/html",
		"backup.timeout":     "6h",
		"remote.policy":      "follow_local",
		"remote.timeout":     "60s",
		"restore.root":       "/",
		"schedule.cron_spec": "0 3 * * *",
		"dump.runner":        "exec",
		"crypto.key_path":    "/etc/wpbackup/key",
		"journal.dsn":        "/var/lib/wpbackup/journal.db",
		"server.address":     "127.0.0.1:9180",
		"log.level":          "warning",
		"log.format":         "text",
	}

	// flags whose config key differs from the flag name
	flagKeys = map[string]string{
		FlagKeyPath: ConfigKeyPath,
		FlagVerbose: ConfigVerbose,
	}
)

func ViperProvider(logger *logrus.Logger, flagSet *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var err error
	flagSet.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			key = f.Name
		}

		if bindErr := v.BindPFlag(key, f); bindErr != nil && err == nil {
			err = bindErr
		}
	})
	if err != nil {
		return nil, err
	}

	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName(DefaultConfigFile)

	// Read config from config file
	if configFile := v.GetString(FlagConfig); configFile != "" {
		// If user do specify config file, then this file MUST exist and be valid
		// so missing file is a fatal error

		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		// If user does not specify config file, then we'll still try to find appropriate config,
		// but missing file is not an error

		for _, dir := range defaultConfigPaths {
			v.AddConfigPath(dir)
		}

		if err := v.ReadInConfig(); err != nil {
			logger.WithError(err).Warn("Couldn't read config file")
		}
	}

	return v, nil
}
