package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/wpbackup/pkg/appcontext"
)

type RunRepository interface {
	Create(context.Context, Run) (Run, error)
	Update(context.Context, Run) error
	FindAllUnfinished(context.Context) ([]Run, error)
}

type cycleRunner interface {
	RunDailyCycle(context.Context) (Report, error)
}

type restorer interface {
	Restore(context.Context, int, Source) (RestoreOutcome, error)
}

type scheduler interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
	Start()
	Stop() context.Context
}

// BackupManager is the entry point of every run. It journals runs, reports
// their outcome to the operator and, in daemon mode, triggers the daily cycle
// on schedule making sure two cycles never overlap.
type BackupManager struct {
	logger logrus.FieldLogger

	settings Settings

	backups  cycleRunner
	restores restorer

	repo     RunRepository
	notifier Notifier

	cron  scheduler
	queue chan time.Time

	now func() time.Time
}

func NewBackupManager(
	logger logrus.FieldLogger,
	settings Settings,
	backups cycleRunner,
	restores restorer,
	repo RunRepository,
	notifier Notifier,
	sched scheduler,
) *BackupManager {
	return &BackupManager{
		logger: logger,

		settings: settings,

		backups:  backups,
		restores: restores,

		repo:     repo,
		notifier: notifier,

		cron:  sched,
		queue: make(chan time.Time),

		now: time.Now,
	}
}

// RunOnce executes one daily cycle. The returned error is the cycle failure,
// journal and notification problems are only logged.
func (m *BackupManager) RunOnce(ctx context.Context) (Report, error) {
	ctx, cancel := m.withRunTimeout(ctx)
	defer cancel()

	run := m.startRun(ctx, RunKindBackup)
	ctx = appcontext.WithRunId(ctx, run.RunId)

	logger := appcontext.LoggerFromContext(m.logger, ctx)
	logger.Info("Starting backup cycle")

	report, err := m.backups.RunDailyCycle(ctx)
	report.RunId = run.RunId
	report.StartedAt = run.CreatedAt
	report.FinishedAt = m.now()
	report.Success = err == nil
	report.Error = NewErrorReport(err)

	run.Day = report.Day
	run.LocalOutcome = report.LocalOutcome.String()
	if report.RemoteOutcome != nil {
		run.RemoteOutcome = report.RemoteOutcome.String()
	}
	m.finishRun(ctx, run, err)

	subject := "Backup of Wordpress of " + report.Day

	if err != nil {
		logger.WithError(err).WithField("transient", IsTransient(err)).Error("Backup failed")
		m.notify(ctx, subject, fmt.Sprintf("Backup failed\n%s", err))

		return report, err
	}

	logger.WithField("members", report.Members).Info("Backup completed")
	m.notify(ctx, subject, fmt.Sprintf(
		"Backup script completed\nYour backups have also been created locally in %s directory",
		report.LocalPath,
	))

	return report, nil
}

// Restore replays generation from source and journals the attempt.
func (m *BackupManager) Restore(ctx context.Context, generation int, source Source) (RestoreOutcome, error) {
	ctx, cancel := m.withRunTimeout(ctx)
	defer cancel()

	run := m.startRun(ctx, RunKindRestore)
	ctx = appcontext.WithRunId(ctx, run.RunId)

	logger := appcontext.LoggerFromContext(m.logger, ctx)
	logger.WithFields(logrus.Fields{"generation": generation, "source": source}).Info("Starting restore")

	outcome, err := m.restores.Restore(ctx, generation, source)
	outcome.RunId = run.RunId
	outcome.StartedAt = run.CreatedAt
	outcome.FinishedAt = m.now()
	outcome.Success = err == nil
	outcome.Error = NewErrorReport(err)

	run.Day = outcome.Day
	m.finishRun(ctx, run, err)

	if err != nil {
		logger.WithError(err).Error("Restore failed")
		return outcome, err
	}

	logger.WithField("address", outcome.Address).Info("Restore completed")

	return outcome, nil
}

// Run schedules the daily cycle and handles ticks until ctx is done.
func (m *BackupManager) Run(ctx context.Context) error {
	m.abortUnfinished(ctx)

	_, err := m.cron.AddFunc(m.settings.CronSpec, m.dispatch)
	if err != nil {
		return errors.Wrapf(err, "invalid cron spec '%s'", m.settings.CronSpec)
	}

	m.logger.WithField("spec", m.settings.CronSpec).Debug("Starting cron")
	m.cron.Start()
	defer m.cron.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-m.queue:
			m.logger.WithField("dispatched_at", t).Info("Handling scheduled backup")
			_, _ = m.RunOnce(ctx)
		}
	}
}

// dispatch never blocks, a tick arriving while a cycle is running is dropped.
func (m *BackupManager) dispatch() {
	t := m.now()

	select {
	case m.queue <- t:
		m.logger.WithField("dispatched_at", t).Info("Dispatched new backup")
	default:
		m.logger.WithField("dispatched_at", t).Warn("Unable to dispatch new backup, previous one is still running")
	}
}

// abortUnfinished marks runs left behind by a terminated process. Their
// generations may be half rotated and have to be inspected manually.
func (m *BackupManager) abortUnfinished(ctx context.Context) {
	runs, err := m.repo.FindAllUnfinished(ctx)
	if err != nil {
		m.logger.WithError(err).Error("Unable to query unfinished runs")
		return
	}

	for _, run := range runs {
		logger := appcontext.LoggerFromContext(m.logger, appcontext.WithRunId(ctx, run.RunId))
		logger.WithField("kind", run.Kind).Warn("Found unfinished run, generations require manual inspection")

		now := m.now()
		run.Status = RunStatusAborted
		run.FinishedAt = &now

		if err := m.repo.Update(ctx, run); err != nil {
			logger.WithError(err).Error("Unable to mark run aborted")
		}
	}

	if len(runs) > 0 {
		m.notify(ctx, "Backup of Wordpress requires inspection",
			fmt.Sprintf("%d run(s) were interrupted, generations may be inconsistent", len(runs)))
	}
}

func (m *BackupManager) withRunTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.settings.Timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, m.settings.Timeout)
}

func (m *BackupManager) startRun(ctx context.Context, kind RunKind) Run {
	run := Run{
		RunId:     uuid.NewString(),
		Kind:      kind,
		Status:    RunStatusStarted,
		CreatedAt: m.now(),
	}

	created, err := m.repo.Create(ctx, run)
	if err != nil {
		appcontext.LoggerFromContext(m.logger, ctx).WithError(err).Error("Unable to journal run")
		return run
	}

	return created
}

func (m *BackupManager) finishRun(ctx context.Context, run Run, err error) {
	now := m.now()

	run.FinishedAt = &now
	run.Status = RunStatusSuccess

	if report := NewErrorReport(err); report != nil {
		run.Status = RunStatusFailure
		run.Stage = string(report.Stage)
		run.ErrorKind = string(report.Kind)
		run.Error = report.Message
	}

	if run.Id == 0 {
		return
	}

	if err := m.repo.Update(context.Background(), run); err != nil {
		appcontext.LoggerFromContext(m.logger, ctx).WithError(err).Error("Unable to journal run outcome")
	}
}

func (m *BackupManager) notify(ctx context.Context, subject, body string) {
	if m.notifier == nil {
		return
	}

	if err := m.notifier.Notify(subject, body); err != nil {
		appcontext.LoggerFromContext(m.logger, ctx).WithError(err).Warn("Unable to send notification")
	}
}
