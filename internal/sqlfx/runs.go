package sqlfx

import (
	"github.com/jmoiron/sqlx"

	"github.com/yurykabanov/wpbackup/pkg/domain"
	"github.com/yurykabanov/wpbackup/pkg/http/handler"
	"github.com/yurykabanov/wpbackup/pkg/storage"
)

func RunsRepository(db *sqlx.DB) (
	*storage.RunRepository,
	domain.RunRepository,
	handler.RunRepository,
) {
	repo := storage.NewRunRepository(db)

	return repo, repo, repo
}
