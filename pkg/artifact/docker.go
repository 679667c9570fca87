package artifact

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/distribution/reference"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/wpbackup/pkg/appcontext"
)

const (
	defaultDumpImage = "mysql:8"

	containerTarget = "/__backup__"

	// mysqldump output is piped into gzip inside the container
	dumpScript = `set -o pipefail; mysqldump ${DB_HOST:+-h "$DB_HOST"} ${DB_PORT:+-P "$DB_PORT"} ${DB_USER:+-u "$DB_USER"} "$DB_NAME" | gzip > "` + containerTarget + `/$DUMP_FILE"`
)

type dockerClient interface {
	ContainerCreate(
		ctx context.Context,
		config *container.Config,
		hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig,
		platform *ocispec.Platform,
		containerName string,
	) (container.CreateResponse, error)

	ContainerStart(
		ctx context.Context,
		containerID string,
		options container.StartOptions,
	) error

	ContainerWait(
		ctx context.Context,
		containerID string,
		condition container.WaitCondition,
	) (<-chan container.WaitResponse, <-chan error)

	ContainerRemove(
		ctx context.Context,
		containerID string,
		options container.RemoveOptions,
	) error

	ImagePull(
		ctx context.Context,
		ref string,
		options image.PullOptions,
	) (io.ReadCloser, error)
}

// DockerDumper runs mysqldump inside a throwaway container with host
// networking, the dump directory is bind mounted into the container.
type DockerDumper struct {
	logger logrus.FieldLogger
	docker dockerClient
	db     DatabaseConfig
	config DumpConfig
}

func NewDockerDumper(logger logrus.FieldLogger, docker dockerClient, db DatabaseConfig, config DumpConfig) *DockerDumper {
	if config.Image == "" {
		config.Image = defaultDumpImage
	}

	return &DockerDumper{
		logger: logger,
		docker: docker,
		db:     db,
		config: config,
	}
}

func (d *DockerDumper) Dump(ctx context.Context, dest string) error {
	logger := appcontext.LoggerFromContext(d.logger, ctx)

	ref, err := reference.ParseNormalizedNamed(d.config.Image)
	if err != nil {
		return errors.Wrapf(err, "invalid dump image %s", d.config.Image)
	}
	ref = reference.TagNameOnly(ref)

	platform, err := parsePlatform(d.config.Platform)
	if err != nil {
		return err
	}

	err = d.pullImage(ctx, ref)
	if err != nil {
		return errors.Wrapf(err, "unable to pull image %s", ref.String())
	}

	dir, err := filepath.Abs(filepath.Dir(dest))
	if err != nil {
		return err
	}

	c, err := d.docker.ContainerCreate(
		ctx,
		&container.Config{
			Image: ref.String(),
			Cmd:   []string{"bash", "-c", dumpScript},
			Env:   d.containerEnv(filepath.Base(dest)),
		}, // container config
		&container.HostConfig{
			NetworkMode: "host",
			Mounts: []mount.Mount{
				{Type: mount.TypeBind, Source: dir, Target: containerTarget},
			},
		}, // host config
		&network.NetworkingConfig{}, // networking config
		platform,
		d.containerName(),
	)
	if err != nil {
		return errors.Wrap(err, "unable to create dump container")
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

		if err := d.docker.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			logger.WithError(err).Error("DockerDumper::Dump is unable to remove container")
		}

		cancel()
	}()

	err = d.docker.ContainerStart(ctx, c.ID, container.StartOptions{})
	if err != nil {
		return errors.Wrap(err, "unable to start dump container")
	}

	logger.WithField("container_id", c.ID).Debug("Dump container started")

	statusCh, errCh := d.docker.ContainerWait(ctx, c.ID, container.WaitConditionNotRunning)

	select {
	case status := <-statusCh:
		if status.Error != nil {
			return errors.Errorf("dump container failed: %s", status.Error.Message)
		}
		if status.StatusCode != 0 {
			return errors.Errorf("dump container exited with status code %d", status.StatusCode)
		}
	case err := <-errCh:
		return errors.Wrap(err, "unable to wait for dump container")
	}

	return nil
}

func (d *DockerDumper) pullImage(ctx context.Context, ref reference.Named) error {
	img, err := d.docker.ImagePull(
		ctx,
		ref.String(),
		image.PullOptions{Platform: d.config.Platform},
	)
	if err != nil {
		return err
	}
	defer img.Close()

	_, err = io.Copy(io.Discard, img)
	if err != nil {
		return err
	}

	return nil
}

func (d *DockerDumper) containerEnv(dumpFile string) []string {
	env := []string{
		"DB_HOST=" + d.db.Host,
		"DB_USER=" + d.db.User,
		"DB_NAME=" + d.db.Name,
		"DUMP_FILE=" + dumpFile,
	}

	if d.db.Port != 0 {
		env = append(env, "DB_PORT="+strconv.Itoa(d.db.Port))
	}

	return append(env, d.db.env()...)
}

func (d *DockerDumper) containerName() string {
	return fmt.Sprintf("wpbackup-dump-%s", uuid.New().String()[:8])
}

// parsePlatform accepts "os/arch" or "os/arch/variant".
func parsePlatform(s string) (*ocispec.Platform, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return nil, errors.Errorf("invalid platform %q", s)
	}

	platform := &ocispec.Platform{
		OS:           parts[0],
		Architecture: parts[1],
	}
	if len(parts) == 3 {
		platform.Variant = parts[2]
	}

	return platform, nil
}
