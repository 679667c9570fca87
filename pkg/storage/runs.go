package storage

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/yurykabanov/wpbackup/pkg/domain"
)

const (
	runColumns = `
			id, run_id, kind, day, status,
			local_outcome, remote_outcome,
			stage, error_kind, error,
			created_at, finished_at
	`

	runInsertQuery = `
		INSERT INTO runs (
			run_id, kind, day, status,
			local_outcome, remote_outcome,
			stage, error_kind, error,
			created_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	runUpdateQuery = `
		UPDATE runs SET
			day = ?, status = ?,
			local_outcome = ?, remote_outcome = ?,
			stage = ?, error_kind = ?, error = ?,
			finished_at = ?
		WHERE id = ?
	`

	runSelectByStatus = `SELECT ` + runColumns + ` FROM runs WHERE status IN (?) ORDER BY created_at`

	runSelectLast = `SELECT ` + runColumns + ` FROM runs WHERE kind = ? ORDER BY created_at DESC, id DESC LIMIT 1`

	runSelectLastWithStatus = `SELECT ` + runColumns + ` FROM runs WHERE kind = ? AND status = ? ORDER BY created_at DESC, id DESC LIMIT 1`
)

type RunRepository struct {
	db *sqlx.DB
}

func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{
		db: db,
	}
}

func (r *RunRepository) Create(ctx context.Context, run domain.Run) (domain.Run, error) {
	res, err := r.db.ExecContext(
		ctx,
		runInsertQuery,
		run.RunId, run.Kind, run.Day, run.Status,
		run.LocalOutcome, run.RemoteOutcome,
		run.Stage, run.ErrorKind, run.Error,
		run.CreatedAt, run.FinishedAt,
	)
	if err != nil {
		return run, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return run, err
	}

	run.Id = id

	return run, nil
}

func (r *RunRepository) Update(ctx context.Context, run domain.Run) error {
	_, err := r.db.ExecContext(
		ctx,
		runUpdateQuery,
		run.Day, run.Status,
		run.LocalOutcome, run.RemoteOutcome,
		run.Stage, run.ErrorKind, run.Error,
		run.FinishedAt,
		run.Id,
	)

	return err
}

func (r *RunRepository) FindAllUnfinished(ctx context.Context) ([]domain.Run, error) {
	query, args, err := sqlx.In(runSelectByStatus, []int{int(domain.RunStatusStarted)})
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var runs []domain.Run

	err = r.db.SelectContext(ctx, &runs, query, args...)
	if err != nil {
		return nil, err
	}

	return runs, nil
}

// FindLast returns the latest run of the kind, nil if there is none.
func (r *RunRepository) FindLast(ctx context.Context, kind domain.RunKind) (*domain.Run, error) {
	return r.get(ctx, runSelectLast, kind)
}

// FindLastSuccessful returns the latest successful run of the kind, nil if there is none.
func (r *RunRepository) FindLastSuccessful(ctx context.Context, kind domain.RunKind) (*domain.Run, error) {
	return r.get(ctx, runSelectLastWithStatus, kind, domain.RunStatusSuccess)
}

func (r *RunRepository) get(ctx context.Context, query string, args ...interface{}) (*domain.Run, error) {
	var run domain.Run

	err := r.db.GetContext(ctx, &run, query, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &run, nil
}
