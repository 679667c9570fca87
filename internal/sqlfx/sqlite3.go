package sqlfx

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/yurykabanov/wpbackup/pkg/storage"
	"github.com/yurykabanov/wpbackup/pkg/util"
)

const (
	ConfigJournalDSN = "journal.dsn"
)

type SqliteConfig struct {
	DSN          string
	DatabaseName string
}

func SqliteConfigProvider(v *viper.Viper) (*SqliteConfig, error) {
	config := &SqliteConfig{
		DSN:          v.GetString(ConfigJournalDSN),
		DatabaseName: "wpbackup",
	}

	if config.DSN == "" {
		return nil, errors.New("Journal DSN is not configured")
	}

	return config, nil
}

func OpenSqliteDatabase(config *SqliteConfig, logger *logrus.Logger) (*sqlx.DB, error) {
	logger.WithField("dsn", config.DSN).Debug("Connecting to DB with DSN")

	file := strings.TrimPrefix(strings.SplitN(config.DSN, "?", 2)[0], "file:")
	if file != "" && file != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
			return nil, errors.Wrap(err, "Unable to create journal directory")
		}
	}

	db, err := sqlx.Open("sqlite3", config.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to connect to DB")
	}

	db.MapperFunc(util.CamelToSnakeCase)

	err = storage.Migrate(db, config.DatabaseName)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func CloseSqliteDatabase(lc fx.Lifecycle, db *sqlx.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
}
