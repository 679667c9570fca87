package sqlfx

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/wpbackup/pkg/domain"
)

func TestOpenSqliteDatabase(t *testing.T) {
	logger := logrus.New()
	logger.Out = io.Discard

	v := viper.New()
	v.Set(ConfigJournalDSN, filepath.Join(t.TempDir(), "nested", "journal.db"))

	config, err := SqliteConfigProvider(v)
	require.NoError(t, err)

	db, err := OpenSqliteDatabase(config, logger)
	require.NoError(t, err)
	defer db.Close()

	repo, _, _ := RunsRepository(db)

	run, err := repo.Create(context.Background(), domain.Run{
		RunId:     "run",
		Kind:      domain.RunKindBackup,
		CreatedAt: time.Now(),
	})

	assert.NoError(t, err)
	assert.NotZero(t, run.Id)
}

func TestSqliteConfigProvider_Empty(t *testing.T) {
	_, err := SqliteConfigProvider(viper.New())

	assert.Error(t, err)
}
