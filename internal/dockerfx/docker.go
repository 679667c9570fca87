package dockerfx

import (
	"context"
	"time"

	docker "github.com/docker/docker/client"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/yurykabanov/wpbackup/pkg/artifact"
)

const (
	ConfigDockerHost    = "docker.host"
	ConfigDockerVersion = "docker.version"
	ConfigDumpRunner    = "dump.runner"
)

const pingTimeout = 10 * time.Second

type DockerConnectionConfig struct {
	Enabled bool
	Host    string
	Version string
}

func DockerConnectionConfigProvider(v *viper.Viper) (*DockerConnectionConfig, error) {
	return &DockerConnectionConfig{
		Enabled: v.GetString(ConfigDumpRunner) == artifact.RunnerDocker,
		Host:    v.GetString(ConfigDockerHost),
		Version: v.GetString(ConfigDockerVersion),
	}, nil
}

// DockerClient connects to the daemon only when dumps run in containers,
// otherwise it provides nil.
func DockerClient(config *DockerConnectionConfig, logger *logrus.Logger) (*docker.Client, error) {
	if !config.Enabled {
		return nil, nil
	}

	opts := []docker.Opt{docker.FromEnv}

	if config.Host != "" {
		opts = append(opts, docker.WithHost(config.Host))
	}

	if config.Version != "" {
		opts = append(opts, docker.WithVersion(config.Version))
	} else {
		opts = append(opts, docker.WithAPIVersionNegotiation())
	}

	logger.WithField("host", config.Host).Debug("Connecting to docker")

	client, err := docker.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to create docker client")
	}

	return client, nil
}

// ManageDockerClient checks that the daemon is reachable on start and closes
// the client on stop.
func ManageDockerClient(lc fx.Lifecycle, client *docker.Client, logger *logrus.Logger) {
	if client == nil {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()

			ping, err := client.Ping(ctx)
			if err != nil {
				return errors.Wrap(err, "Unable to ping docker")
			}

			logger.WithField("api_version", ping.APIVersion).Debug("Docker daemon is reachable")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
}
