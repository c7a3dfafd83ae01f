// Package logging holds the process-wide logrus logger.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	log.Level = parseLevel(os.Getenv("PINGMONITOR_LOGLEVEL"))
}

// Get returns the shared logger.
func Get() *logrus.Logger {
	return log
}

// WithPrefix returns an entry tagged with the component name.
func WithPrefix(prefix string) *logrus.Entry {
	return log.WithField("prefix", prefix)
}

// SetLevel changes the level of the shared logger. Unknown names fall back to info.
func SetLevel(level string) {
	log.SetLevel(parseLevel(level))
}

// UseJSON switches the shared logger to JSON output.
func UseJSON() {
	log.Formatter = &logrus.JSONFormatter{}
}

func parseLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}
