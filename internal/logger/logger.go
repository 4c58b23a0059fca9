package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Init configures the standard logrus logger used across the service.
func Init(level, format string) {
	configure(logrus.StandardLogger(), level, format, os.Stdout)
}

// New returns a standalone logger, mostly for tests and tools.
func New(level, format string, out io.Writer) *logrus.Logger {
	l := logrus.New()
	configure(l, level, format, out)
	return l
}

func configure(l *logrus.Logger, level, format string, out io.Writer) {
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat})
	}
	l.SetOutput(out)
}
