package domainfx

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/yurykabanov/wpbackup/internal/configfx"
	"github.com/yurykabanov/wpbackup/pkg/domain"
)

type memoryJournal struct {
	runs []domain.Run
}

func (j *memoryJournal) Create(ctx context.Context, run domain.Run) (domain.Run, error) {
	run.Id = int64(len(j.runs) + 1)
	j.runs = append(j.runs, run)

	return run, nil
}

func (j *memoryJournal) Update(ctx context.Context, run domain.Run) error {
	j.runs[run.Id-1] = run
	return nil
}

func (j *memoryJournal) FindAllUnfinished(ctx context.Context) ([]domain.Run, error) {
	return nil, nil
}

type cycleFunc func(ctx context.Context) (domain.Report, error)

func (f cycleFunc) RunDailyCycle(ctx context.Context) (domain.Report, error) {
	return f(ctx)
}

type restoreFunc func(ctx context.Context, generation int, source domain.Source) (domain.RestoreOutcome, error)

func (f restoreFunc) Restore(ctx context.Context, generation int, source domain.Source) (domain.RestoreOutcome, error) {
	return f(ctx, generation, source)
}

func newCommandParams(command configfx.Command, cycle cycleFunc, restore restoreFunc) (CommandParams, *bytes.Buffer, *memoryJournal) {
	logger := logrus.New()
	logger.Out = io.Discard

	journal := &memoryJournal{}
	manager := domain.NewBackupManager(logger, domain.Settings{Retention: 7, Timeout: time.Minute}, cycle, restore, journal, nil, cron.New())

	var out bytes.Buffer

	return CommandParams{
		Logger:  logger,
		Command: command,
		Restore: configfx.RestoreOptions{Generation: 2, Source: domain.SourceLocal},
		Manager: manager,
		Output:  &out,
	}, &out, journal
}

func TestExecuteCommand_Run(t *testing.T) {
	p, out, journal := newCommandParams(configfx.CommandRun, func(ctx context.Context) (domain.Report, error) {
		return domain.Report{Day: "20261018", LocalOutcome: domain.OutcomeRotated, LocalPath: "/backup/DAYJ"}, nil
	}, nil)

	code := executeCommand(context.Background(), p)

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out.String(), `"day": "20261018"`)
	assert.Contains(t, out.String(), `"local_outcome": "rotated"`)
	assert.Contains(t, out.String(), `"success": true`)
	assert.NotContains(t, out.String(), `"remote_outcome"`)
	assert.Len(t, journal.runs, 1)
	assert.Equal(t, domain.RunStatusSuccess, journal.runs[0].Status)
}

func TestExecuteCommand_Run_Failure(t *testing.T) {
	p, out, journal := newCommandParams(configfx.CommandRun, func(ctx context.Context) (domain.Report, error) {
		return domain.Report{Day: "20261018"}, &domain.Error{
			Stage: domain.StageDump,
			Kind:  domain.KindDump,
			Err:   errors.New("mysqldump: command not found"),
		}
	}, nil)

	code := executeCommand(context.Background(), p)

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out.String(), `"success": false`)
	assert.Contains(t, out.String(), `"stage": "dump"`)
	assert.Equal(t, domain.RunStatusFailure, journal.runs[0].Status)
}

func TestExecuteCommand_Restore(t *testing.T) {
	p, out, _ := newCommandParams(configfx.CommandRestore, nil, func(ctx context.Context, generation int, source domain.Source) (domain.RestoreOutcome, error) {
		return domain.RestoreOutcome{Generation: generation, Source: source, Address: domain.ContainerAddress(generation)}, nil
	})

	code := executeCommand(context.Background(), p)

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out.String(), `"address": "DAYJ-2"`)
	assert.Contains(t, out.String(), `"source": "local"`)
}

func TestExecuteCommand_Unsupported(t *testing.T) {
	p, out, _ := newCommandParams(configfx.Command("prune"), nil, nil)

	assert.Equal(t, ExitFailure, executeCommand(context.Background(), p))
	assert.Empty(t, out.String())
}
