package obs

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

// LogOptions configure the shared application logger.
type LogOptions struct {
	Level  string // trace|debug|info|warning|error
	Format string // text|json
}

// InitLogger configures the shared logger. Call once at startup before
// anything logs.
func InitLogger(opts LogOptions) {
	switch opts.Level {
	case "trace":
		logger.SetLevel(logrus.TraceLevel)
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warning", "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if opts.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.SetOutput(os.Stdout)
}

// Logger returns the shared structured logger used across the service.
func Logger() *logrus.Logger {
	return logger
}
