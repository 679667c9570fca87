package configfx

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/wpbackup/pkg/domain"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard

	return logger
}

func writeConfig(t *testing.T, content string) string {
	p := filepath.Join(t.TempDir(), "wpbackup.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0640))

	return p
}

const testConfig = `
backup:
  retention: 3
  local_path: /srv/backup
  site_path: /srv/www
  timeout: 30m
db:
  name: blog
remote:
  policy: marker
crypto:
  key_path: /etc/wpbackup/site.key
`

func TestParseArgs(t *testing.T) {
	fs, command, err := ParseArgs([]string{"-c", "/etc/wpbackup.yaml", "-v", "2", "restore", "-d", "3", "--local"})

	require.NoError(t, err)
	assert.Equal(t, CommandRestore, command)

	day, _ := fs.GetInt(FlagDay)
	assert.Equal(t, 3, day)

	verbose, _ := fs.GetInt(FlagVerbose)
	assert.Equal(t, 2, verbose)
}

func TestParseArgs_Errors(t *testing.T) {
	_, _, err := ParseArgs([]string{})
	assert.Error(t, err)

	_, _, err = ParseArgs([]string{"backup"})
	assert.Error(t, err)

	_, _, err = ParseArgs([]string{"run", "serve"})
	assert.Error(t, err)

	_, _, err = ParseArgs([]string{"--unknown", "run"})
	assert.Error(t, err)
}

func TestSettingsProvider(t *testing.T) {
	fs, _, err := ParseArgs([]string{"-c", writeConfig(t, testConfig), "run"})
	require.NoError(t, err)

	v, err := ViperProvider(discardLogger(), fs)
	require.NoError(t, err)

	settings, err := SettingsProvider(v, Validator())
	require.NoError(t, err)

	assert.Equal(t, domain.Settings{
		Retention:    3,
		LocalPath:    "/srv/backup",
		SitePath:     "/srv/www",
		Database:     "blog",
		RemotePolicy: domain.RemotePolicyMarker,
		RestoreRoot:  "/",
		CronSpec:     "0 3 * * *",
		Timeout:      30 * time.Minute,
	}, settings)

	assert.Equal(t, "/etc/wpbackup/site.key", v.GetString(ConfigKeyPath))
	assert.Equal(t, -1, v.GetInt(ConfigVerbose))
}

func TestSettingsProvider_FlagOverridesConfig(t *testing.T) {
	fs, _, err := ParseArgs([]string{"-c", writeConfig(t, testConfig), "--key-path", "/tmp/key", "keygen"})
	require.NoError(t, err)

	v, err := ViperProvider(discardLogger(), fs)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/key", v.GetString(ConfigKeyPath))
}

func TestSettingsProvider_Invalid(t *testing.T) {
	config := writeConfig(t, `
backup:
  retention: 1
db:
  name: blog
`)

	fs, _, err := ParseArgs([]string{"-c", config, "run"})
	require.NoError(t, err)

	v, err := ViperProvider(discardLogger(), fs)
	require.NoError(t, err)

	_, err = SettingsProvider(v, Validator())
	assert.Error(t, err)

	v.Set("backup.retention", 2)
	v.Set("remote.policy", "sometimes")

	_, err = SettingsProvider(v, Validator())
	assert.Error(t, err)
}

func TestViperProvider_MissingConfigFile(t *testing.T) {
	fs, _, err := ParseArgs([]string{"-c", "/does/not/exist.yaml", "run"})
	require.NoError(t, err)

	_, err = ViperProvider(discardLogger(), fs)
	assert.Error(t, err)
}

func TestRestoreOptionsProvider(t *testing.T) {
	fs, _, err := ParseArgs([]string{"restore", "-d", "3"})
	require.NoError(t, err)

	options, err := RestoreOptionsProvider(fs, Validator())
	require.NoError(t, err)
	assert.Equal(t, RestoreOptions{Generation: 3, Source: domain.SourceRemote}, options)

	fs, _, err = ParseArgs([]string{"restore", "-l"})
	require.NoError(t, err)

	options, err = RestoreOptionsProvider(fs, Validator())
	require.NoError(t, err)
	assert.Equal(t, RestoreOptions{Generation: 0, Source: domain.SourceLocal}, options)

	fs, _, err = ParseArgs([]string{"restore", "-d", "-1"})
	require.NoError(t, err)

	_, err = RestoreOptionsProvider(fs, Validator())
	assert.Error(t, err)
}
