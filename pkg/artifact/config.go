package artifact

import "strconv"

const (
	RunnerExec   = "exec"
	RunnerDocker = "docker"
)

// DatabaseConfig describes the live database the site runs on.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// DumpConfig selects how the database dump is produced.
type DumpConfig struct {
	Runner string `mapstructure:"runner"`

	// Binaries used by the exec runner
	DumpBinary   string `mapstructure:"dump_binary"`
	ImportBinary string `mapstructure:"import_binary"`

	// Image and platform used by the docker runner
	Image    string `mapstructure:"image"`
	Platform string `mapstructure:"platform"`
}

// connectionArgs builds mysql client arguments, the password is passed via
// MYSQL_PWD and never appears on the command line.
func (c DatabaseConfig) connectionArgs() []string {
	var args []string

	if c.Host != "" {
		args = append(args, "-h", c.Host)
	}
	if c.Port != 0 {
		args = append(args, "-P", strconv.Itoa(c.Port))
	}
	if c.User != "" {
		args = append(args, "-u", c.User)
	}

	return args
}

func (c DatabaseConfig) env() []string {
	if c.Password == "" {
		return nil
	}

	return []string{"MYSQL_PWD=" + c.Password}
}
