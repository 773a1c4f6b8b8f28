package config

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOutput returns where log lines go: stderr, plus a size-rotated file
// when p.LogFile is set. The returned closer must be closed on exit.
func (p Preferences) LogOutput() (io.Writer, io.Closer) {
	if p.LogFile == "" {
		return os.Stderr, nopCloser{}
	}

	maxSize := p.LogMaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	file := &lumberjack.Logger{
		Filename:   p.LogFile,
		MaxSize:    maxSize,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	return io.MultiWriter(os.Stderr, file), file
}

// NewLogger returns a logger with the bracketed component prefix used
// across tabsync, e.g. NewLogger(w, "sync") writes "[sync] ...".
func NewLogger(w io.Writer, component string) *log.Logger {
	return log.New(w, "["+component+"] ", log.LstdFlags)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
