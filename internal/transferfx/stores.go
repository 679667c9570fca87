package transferfx

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/yurykabanov/wpbackup/pkg/domain"
	"github.com/yurykabanov/wpbackup/pkg/mount"
	"github.com/yurykabanov/wpbackup/pkg/transfer"
)

const (
	ConfigRemote = "remote"
)

func LocalStore(settings domain.Settings) (*transfer.LocalStore, domain.LocalStore, error) {
	store, err := transfer.NewLocalStore(settings.LocalPath)
	if err != nil {
		return nil, nil, err
	}

	return store, store, nil
}

func FTPConfigProvider(v *viper.Viper) (*transfer.FTPConfig, error) {
	var config transfer.FTPConfig

	err := v.UnmarshalKey(ConfigRemote, &config)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to unmarshal remote config")
	}

	return &config, nil
}

// RemoteStore is nil when no remote address is configured.
func RemoteStore(lc fx.Lifecycle, config *transfer.FTPConfig, logger *logrus.Logger) domain.Store {
	if config.Address == "" {
		logger.Warn("Remote backend is not configured, backups are kept locally only")
		return nil
	}

	store := transfer.NewFTPStore(logger.WithField("backend", "ftp"), *config)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})

	return store
}

// MountManager allocates working directories inside the local backup root.
func MountManager(local *transfer.LocalStore) domain.MountManager {
	return mount.New(local.Path(""))
}
