package configfx

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

const (
	FlagConfig  = "config"
	FlagVerbose = "verbose"
	FlagDay     = "day"
	FlagLocal   = "local"
	FlagKeyPath = "key-path"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandServe   Command = "serve"
	CommandRestore Command = "restore"
	CommandKeygen  Command = "keygen"
)

var commands = map[Command]bool{
	CommandRun:     true,
	CommandServe:   true,
	CommandRestore: true,
	CommandKeygen:  true,
}

func PFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)

	// Config file flag
	fs.StringP(FlagConfig, "c", "", "Config file")

	fs.IntP(FlagVerbose, "v", -1, "Verbosity: 0 warnings, 1 info, 2 debug")
	fs.IntP(FlagDay, "d", 0, "Generation to restore, 0 is the latest one")
	fs.BoolP(FlagLocal, "l", false, "Restore from the local backup instead of the remote one")
	fs.String(FlagKeyPath, "", "Path of the sealing key")

	return fs
}

// ParseArgs parses command line flags and returns the flag set together
// with the requested command.
func ParseArgs(args []string) (*pflag.FlagSet, Command, error) {
	fs := PFlags()

	err := fs.Parse(args)
	if err != nil {
		return nil, "", err
	}

	if fs.NArg() != 1 {
		return nil, "", errors.New("exactly one command expected: run, serve, restore or keygen")
	}

	command := Command(fs.Arg(0))
	if !commands[command] {
		return nil, "", errors.Errorf("unknown command %q", command)
	}

	return fs, command, nil
}
