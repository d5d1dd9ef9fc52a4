package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/phuslu/log"
)

// Session is a logger bound to one run. Console output is human readable;
// the session file receives JSON lines.
type Session struct {
	*log.Logger
	Path string
	file *os.File
}

type Options struct {
	Level   string
	Dir     string    // directory for the session log file; empty disables it
	Console io.Writer // defaults to stderr
	Quiet   bool      // no console output (the TUI owns the terminal)
	RunID   string
}

// Open creates the session logger. The log file is named after the start
// time so consecutive runs never share one.
func Open(opts Options) (*Session, error) {
	var writers log.MultiEntryWriter

	if !opts.Quiet {
		console := opts.Console
		if console == nil {
			console = os.Stderr
		}
		writers = append(writers, &log.ConsoleWriter{
			Writer:         console,
			ColorOutput:    console == os.Stderr,
			EndWithMessage: true,
		})
	}

	s := &Session{}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("creating log dir: %w", err)
		}
		s.Path = filepath.Join(opts.Dir, fmt.Sprintf("mapharvest_%s.log", time.Now().Format("20060102_150405")))
		f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log: %w", err)
		}
		s.file = f
		writers = append(writers, &log.IOWriter{Writer: f})
	}

	var ctx log.Context
	if opts.RunID != "" {
		ctx = log.NewContext(nil).Str("run_id", opts.RunID).Value()
	}

	level := opts.Level
	if level == "" {
		level = "info"
	}
	s.Logger = &log.Logger{
		Level:   log.ParseLevel(level),
		Context: ctx,
		Writer:  &writers,
	}
	return s, nil
}

func (s *Session) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *log.Logger {
	return &log.Logger{
		Level:  log.PanicLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}
