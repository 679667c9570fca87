package domain_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/wpbackup/pkg/domain"
)

// replay records what a restore fed into the database and the site tree.
type replay struct {
	dump      string
	site      string
	root      string
	importErr error
}

func (r *replay) Import(ctx context.Context, dump string) error {
	if r.importErr != nil {
		return r.importErr
	}

	content, err := os.ReadFile(dump)
	if err != nil {
		return err
	}
	r.dump = string(content)

	return nil
}

func (r *replay) Extract(ctx context.Context, archive, root string) error {
	content, err := os.ReadFile(archive)
	if err != nil {
		return err
	}
	r.site = string(content)
	r.root = root

	return nil
}

var restoreTime = time.Date(2026, 10, 18, 3, 15, 0, 0, time.UTC)

func (f *fixture) restoreService(remote domain.Store, r *replay) *domain.RestoreService {
	logger := logrus.New()
	logger.Out = io.Discard

	return domain.NewRestoreService(logger, f.settings, f.local, remote, f.mounts, f.sealer, r, r).
		WithClock(func() time.Time { return restoreTime })
}

func newRestoreFixture(t *testing.T) *fixture {
	f := newFixture(t, 3)
	f.settings.RestoreRoot = filepath.Join(t.TempDir(), "root")

	for _, day := range []string{"20261015", "20261016", "20261017"} {
		_, err := f.runOn(day)
		require.NoError(t, err)
	}

	return f
}

func TestRestoreService_Local(t *testing.T) {
	f := newRestoreFixture(t)
	r := &replay{}

	outcome, err := f.restoreService(f.remote, r).Restore(context.Background(), 1, domain.SourceLocal)

	require.NoError(t, err)
	assert.Equal(t, "DAYJ-1", outcome.Address)
	assert.Equal(t, "20261016", outcome.Day)
	assert.Equal(t, f.local.Path("DAYJ-1"), outcome.WorkDir)
	assert.Equal(t, "dump of 20261016", r.dump)
	assert.Equal(t, "site of 20261016", r.site)
	assert.Equal(t, f.settings.RestoreRoot, r.root)

	// decrypted copies are removed, sealed members stay
	assert.ElementsMatch(t, sealedMembers(), f.list(f.local, "DAYJ-1"))
}

func TestRestoreService_Remote(t *testing.T) {
	f := newRestoreFixture(t)
	r := &replay{}

	outcome, err := f.restoreService(f.remote, r).Restore(context.Background(), 2, domain.SourceRemote)

	require.NoError(t, err)
	assert.Equal(t, "DAYJ-2", outcome.Address)
	assert.Equal(t, "20261015", outcome.Day)
	assert.Equal(t, f.local.Path("RESTORE-20261018T031500"), outcome.WorkDir)
	assert.Equal(t, "dump of 20261015", r.dump)
	assert.Equal(t, "site of 20261015", r.site)

	// the working directory is not a generation and is left for inspection
	assert.DirExists(t, outcome.WorkDir)
	assert.Equal(t, "20261017", f.marker(f.local, 0))

	// same timestamp again refuses to reuse the directory
	_, err = f.restoreService(f.remote, &replay{}).Restore(context.Background(), 2, domain.SourceRemote)

	var domainErr *domain.Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.StageDownload, domainErr.Stage)
}

func TestRestoreService_OutOfWindow(t *testing.T) {
	f := newRestoreFixture(t)

	for _, generation := range []int{3, 10, -1} {
		_, err := f.restoreService(f.remote, &replay{}).Restore(context.Background(), generation, domain.SourceLocal)

		var domainErr *domain.Error
		require.True(t, errors.As(err, &domainErr), "generation %d", generation)
		assert.Equal(t, domain.KindResolution, domainErr.Kind)
		assert.Equal(t, domain.StageResolve, domainErr.Stage)
	}
}

func TestRestoreService_RemoteNotConfigured(t *testing.T) {
	f := newRestoreFixture(t)

	_, err := f.restoreService(nil, &replay{}).Restore(context.Background(), 0, domain.SourceRemote)

	var domainErr *domain.Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.KindResolution, domainErr.Kind)
}

func TestRestoreService_IncompleteGeneration(t *testing.T) {
	f := newRestoreFixture(t)
	require.NoError(t, f.local.Remove(context.Background(), "DAYJ-1/date.txt.bin"))

	r := &replay{}
	_, err := f.restoreService(f.remote, r).Restore(context.Background(), 1, domain.SourceLocal)

	var domainErr *domain.Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.KindResolution, domainErr.Kind)
	assert.Equal(t, "date.txt.bin", domainErr.Op)
	assert.Empty(t, r.dump)
}

func TestRestoreService_ImportFailureSkipsExtraction(t *testing.T) {
	f := newRestoreFixture(t)
	r := &replay{importErr: errors.New("ERROR 1064 (42000) at line 1")}

	_, err := f.restoreService(f.remote, r).Restore(context.Background(), 0, domain.SourceLocal)

	var domainErr *domain.Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.StageImport, domainErr.Stage)
	assert.Equal(t, domain.KindDatabaseImportFailed, domainErr.Kind)
	assert.Empty(t, r.site)

	assert.ElementsMatch(t, sealedMembers(), f.list(f.local, "DAYJ"))
}
