// Package obslog centralizes the runtime's logrus setup so every package
// logs with the same fields and formatter instead of constructing its own
// *logrus.Logger.
package obslog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger configured the way the runtime expects:
// text formatting with full timestamps to stderr, level controlled by the
// SYNAPSE_LOG_LEVEL environment variable (defaults to info).
func New() *logrus.Logger {
	logger := logrus.New()
	logger.Out = os.Stderr
	logger.Formatter = &logrus.TextFormatter{
		FullTimestamp: true,
	}

	level, err := logrus.ParseLevel(os.Getenv("SYNAPSE_LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// Component returns a logger with a "component" field set, for consistent
// per-subsystem log lines (e.g. obslog.Component(log, "camera-handler")).
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField("component", name)
}

// Camera returns a logger scoped to a single camera index.
func Camera(logger *logrus.Logger, cameraIndex int) *logrus.Entry {
	return logger.WithField("camera", cameraIndex)
}
