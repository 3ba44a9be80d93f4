// Package logging holds the process-wide logrus logger.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is replaced by Init; until then it logs at INFO so packages can be used from tests.
var Logger = newLogger(logrus.InfoLevel)

// AllLevels lists every accepted --log-level value, separated by '|'.
var AllLevels = ""

func init() {
	names := make([]string, 0, len(logrus.AllLevels))
	for _, logLevel := range logrus.AllLevels {
		names = append(names, strings.ToUpper(logLevel.String()))
	}
	AllLevels = strings.Join(names, "|")
}

func Init(lvl logrus.Level) {
	Logger = newLogger(lvl)
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return Logger.WithField("component", component)
}

func newLogger(lvl logrus.Level) *logrus.Logger {
	return &logrus.Logger{
		Out:   os.Stderr,
		Level: lvl,
		Hooks: make(logrus.LevelHooks),

		Formatter: &logrus.TextFormatter{
			DisableColors: false,

			DisableLevelTruncation: true,
			PadLevelText:           true,
			DisableSorting:         false,

			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		},
	}
}
