// Package logger sets up the global zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	File  string
	// Console is where human readable output goes when File is empty.
	// Defaults to stdout.
	Console io.Writer
}

// Init replaces log.Logger. Console output is human readable; a file gets
// JSON lines rotated at 100MB.
func Init(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = zerolog.New(writerFor(opts.File, opts.Console)).With().Timestamp().Logger()
	if err != nil {
		log.Warn().Str("value", opts.Level).Msg("unsupported LOG_LEVEL, defaulting to info")
	}
	return log.Logger
}

func writerFor(file string, console io.Writer) io.Writer {
	file = strings.TrimSpace(file)
	if file == "" {
		if console == nil {
			console = os.Stdout
		}
		return zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	}
	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}
}
