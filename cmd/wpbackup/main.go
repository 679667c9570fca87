package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/yurykabanov/wpbackup/internal/configfx"
	"github.com/yurykabanov/wpbackup/internal/dockerfx"
	"github.com/yurykabanov/wpbackup/internal/domainfx"
	"github.com/yurykabanov/wpbackup/internal/loggerfx"
	"github.com/yurykabanov/wpbackup/internal/metricsfx"
	"github.com/yurykabanov/wpbackup/internal/sqlfx"
	"github.com/yurykabanov/wpbackup/internal/transferfx"
)

const usage = `Usage: wpbackup [flags] run|serve|restore|keygen

  run       rotate generations and back the site up once
  serve     run backups on schedule and serve metrics
  restore   restore generation --day from remote, or local with --local
  keygen    write a new sealing key to --key-path

Flags:
`

func main() {
	logger := loggerfx.Logger()

	flagSet, command, err := configfx.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, usage)
		configfx.PFlags().PrintDefaults()
		os.Exit(2)
	}

	options := []fx.Option{
		fx.StartTimeout(15 * time.Second),
		fx.StopTimeout(15 * time.Second),

		fx.Logger(logger),
		fx.Supply(flagSet, command),

		loggerfx.Module,
		configfx.Module,
	}

	switch command {
	case configfx.CommandKeygen:
		options = append(options, domainfx.KeygenModule)

	case configfx.CommandServe:
		options = append(options, metricsfx.Module)
		fallthrough

	default:
		options = append(options,
			sqlfx.Module,
			dockerfx.Module,
			transferfx.Module,
			domainfx.Module,
		)
	}

	fx.New(options...).Run()
}
