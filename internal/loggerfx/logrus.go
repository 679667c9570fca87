package loggerfx

import (
	"log"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	ConfigLogLevel   = "log.level"
	ConfigLogFormat  = "log.format"
	ConfigLogVerbose = "log.verbose"
)

var logger *logrus.Logger

func init() {
	logger = logrus.StandardLogger()
	logger.SetFormatter(&logrus.JSONFormatter{})
}

func Logger() *logrus.Logger {
	return logger
}

// DefaultLoggerAdapter routes standard library logs (e.g. http.Server errors) to logrus.
func DefaultLoggerAdapter(logger *logrus.Logger) *log.Logger {
	return log.New(logger.WriterLevel(logrus.ErrorLevel), "", 0)
}

// VerboseLevel maps the verbosity flag to a log level, false if it is not set.
func VerboseLevel(verbose int) (logrus.Level, bool) {
	switch {
	case verbose < 0:
		return 0, false
	case verbose == 0:
		return logrus.WarnLevel, true
	case verbose == 1:
		return logrus.InfoLevel, true
	default:
		return logrus.DebugLevel, true
	}
}

type LoggerConfig struct {
	Level   string
	Format  string
	Verbose int
}

func LoggerConfigProvider(v *viper.Viper) *LoggerConfig {
	return &LoggerConfig{
		Level:   v.GetString(ConfigLogLevel),
		Format:  v.GetString(ConfigLogFormat),
		Verbose: v.GetInt(ConfigLogVerbose),
	}
}

// ConfigureLogger applies config to logger. Verbosity flag wins over
// configured level.
func ConfigureLogger(logger *logrus.Logger, config *LoggerConfig) {
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.WarnLevel
	}

	if verboseLevel, ok := VerboseLevel(config.Verbose); ok {
		level = verboseLevel
	}

	logger.SetLevel(level)

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		fallthrough
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{})
	}
}
