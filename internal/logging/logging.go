// Package logging configures the shared logrus logger: level from the
// resolved config, and file output rotated through lumberjack when a log
// directory is set.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/apperr"
)

// maxLogSizeMB, maxLogBackups, and maxLogAgeDays bound the rotated log
// directory's disk footprint.
const (
	maxLogSizeMB  = 50
	maxLogBackups = 5
	maxLogAgeDays = 30
)

// New builds a logrus.Logger at level, writing to stderr and, when logDir is
// non-empty, also to a rotated file inside it.
func New(level, logDir string) (*logrus.Logger, error) {
	parsedLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level %q: %v", apperr.ErrConfigInvalid, level, err)
	}

	logger := logrus.New()
	logger.SetLevel(parsedLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	out := io.Writer(os.Stderr)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create log dir: %v", apperr.ErrConfigInvalid, err)
		}
		fileWriter := &lumberjack.Logger{
			Filename:   filepath.Join(logDir, "tgi-processing.log"),
			MaxSize:    maxLogSizeMB,
			MaxBackups: maxLogBackups,
			MaxAge:     maxLogAgeDays,
		}
		out = io.MultiWriter(os.Stderr, fileWriter)
	}
	logger.SetOutput(out)

	return logger, nil
}
