package logging

import (
	"io"

	"github.com/phuslu/log"
)

// CreateDebugLogger logs at debug level and stamps every line with its caller
func CreateDebugLogger(w io.Writer) *log.Logger {
	return &log.Logger{
		Level:  log.DebugLevel,
		Caller: 1,
		Writer: &log.ConsoleWriter{
			Writer:         w,
			ColorOutput:    false,
			EndWithMessage: true,
		},
	}
}

// CreateLogger returns a console logger writing to w at the given level.
// Unknown level names fall back to info.
func CreateLogger(level string, w io.Writer) *log.Logger {
	return &log.Logger{
		Level:  log.ParseLevel(level),
		Caller: 0,
		Writer: &log.ConsoleWriter{
			Writer:         w,
			ColorOutput:    false,
			EndWithMessage: true,
		},
	}
}

// CreateDiscardLogger is used by tests that only care about returned errors.
func CreateDiscardLogger() *log.Logger {
	return CreateLogger("error", io.Discard)
}
