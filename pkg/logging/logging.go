// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	log "github.com/sirupsen/logrus"
)

// Options selects the log level and an optional rotating log file.
type Options struct {
	Level   string
	File    string
	MaxSize int // megabytes
	MaxAge  int // days
}

// Setup applies opts to the standard logrus logger and returns the writer
// log output now goes to. With no file set, logs go to stderr.
func Setup(opts Options) (io.Writer, error) {
	return configure(log.StandardLogger(), opts)
}

func configure(logger *log.Logger, opts Options) (io.Writer, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		var err error
		if level, err = log.ParseLevel(opts.Level); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}
	logger.SetLevel(level)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if opts.File == "" {
		logger.SetOutput(os.Stderr)
		return os.Stderr, nil
	}

	w := &lumberjack.Logger{
		Filename: opts.File,
		MaxSize:  opts.MaxSize,
		MaxAge:   opts.MaxAge,
	}
	logger.SetOutput(w)
	logger.WithFields(log.Fields{
		"file":    opts.File,
		"maxSize": opts.MaxSize,
		"maxAge":  opts.MaxAge,
	}).Debug("Sending log messages to rotating file")
	return w, nil
}
