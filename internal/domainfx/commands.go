package domainfx

import (
	"context"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/yurykabanov/wpbackup/internal/configfx"
	"github.com/yurykabanov/wpbackup/pkg/domain"
	"github.com/yurykabanov/wpbackup/pkg/seal"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Output is where command results are printed.
type Output io.Writer

func StdoutOutput() Output {
	return os.Stdout
}

type CommandParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *logrus.Logger

	Command configfx.Command
	Restore configfx.RestoreOptions
	Manager *domain.BackupManager
	Output  Output
}

// RunCommand executes the requested command once the application started.
// One-shot commands shut the application down with their exit code, serve
// runs until the application is stopped.
func RunCommand(p CommandParams) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)

				code := executeCommand(ctx, p)
				if p.Command == configfx.CommandServe && ctx.Err() != nil {
					return
				}

				if err := p.Shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					p.Logger.WithError(err).Error("Unable to shut down")
				}
			}()

			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()

			select {
			case <-done:
			case <-stopCtx.Done():
				p.Logger.Warn("Command did not finish in time")
			}

			return nil
		},
	})
}

func executeCommand(ctx context.Context, p CommandParams) int {
	switch p.Command {
	case configfx.CommandRun:
		report, err := p.Manager.RunOnce(ctx)
		printResult(p, report)

		return exitCode(err)

	case configfx.CommandRestore:
		outcome, err := p.Manager.Restore(ctx, p.Restore.Generation, p.Restore.Source)
		printResult(p, outcome)

		return exitCode(err)

	case configfx.CommandServe:
		err := p.Manager.Run(ctx)
		if err != nil {
			p.Logger.WithError(err).Error("Scheduler stopped")
			return ExitFailure
		}

		return ExitSuccess
	}

	p.Logger.WithField("command", p.Command).Error("Unsupported command")

	return ExitFailure
}

func printResult(p CommandParams, result interface{}) {
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		p.Logger.WithError(err).Error("Unable to encode result")
		return
	}

	_, _ = p.Output.Write(append(b, '\n'))
}

func exitCode(err error) int {
	if err != nil {
		return ExitFailure
	}

	return ExitSuccess
}

// RunKeygen writes a fresh sealing key and shuts the application down.
func RunKeygen(lc fx.Lifecycle, shutdowner fx.Shutdowner, logger *logrus.Logger, v *viper.Viper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			keyPath := v.GetString(ConfigKeyPath)
			code := ExitSuccess

			if err := seal.GenerateKey(keyPath); err != nil {
				logger.WithError(err).WithField("path", keyPath).Error("Unable to generate key")
				code = ExitFailure
			} else {
				logger.WithField("path", keyPath).Warn("Sealing key generated, keep a copy off this host")
			}

			return shutdowner.Shutdown(fx.ExitCode(code))
		},
	})
}
