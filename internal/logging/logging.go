// Package logging configures the process-wide logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the default logger. Quiet by default: only warnings and
// errors reach the terminal unless verbose is set.
func Init(verbose bool) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
}
