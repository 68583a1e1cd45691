package logging

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// writer is an io.Writer that splits its input stream into lines and writes
// those lines to an underlying logger.
type writer struct {
	// callback is the logging callback.
	callback func(string)
	// buffer is any incomplete line fragment left over from a previous write.
	buffer []byte
}

// trimCarriageReturn trims any single trailing carriage return from the end
// of a byte slice.
func trimCarriageReturn(buffer []byte) []byte {
	if len(buffer) > 0 && buffer[len(buffer)-1] == '\r' {
		return buffer[:len(buffer)-1]
	}
	return buffer
}

// Write implements io.Writer.Write.
func (w *writer) Write(buffer []byte) (int, error) {
	w.buffer = append(w.buffer, buffer...)

	var processed int
	remaining := w.buffer
	for {
		index := bytes.IndexByte(remaining, '\n')
		if index == -1 {
			break
		}
		w.callback(string(trimCarriageReturn(remaining[:index])))
		processed += index + 1
		remaining = remaining[index+1:]
	}

	if processed > 0 {
		leftover := len(w.buffer) - processed
		if leftover > 0 {
			copy(w.buffer[:leftover], w.buffer[processed:])
		}
		w.buffer = w.buffer[:leftover]
	}

	return len(buffer), nil
}

// Logger is the main logger type. Every sublogger shares its root's level and
// destination; only the prefix changes as loggers are scoped down to a
// component. It is safe for concurrent use.
type Logger struct {
	// prefix is any prefix specified for the logger.
	prefix string
	// level is the minimum level at which this logger (and any descendant
	// created via Sublogger) will emit output.
	level Level
	// color indicates whether Warn/Error output should be colorized.
	color bool
}

// NewLogger creates a root logger that writes to output (gating colorized
// Warn/Error output on whether output is a terminal) at the specified level.
func NewLogger(output io.Writer, level Level) *Logger {
	log.SetOutput(output)
	log.SetFlags(log.Ldate | log.Ltime)

	useColor := false
	if file, ok := output.(*os.File); ok {
		useColor = isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
	}

	return &Logger{level: level, color: useColor}
}

// Sublogger creates a new sublogger with the specified name, inheriting the
// parent's level and color setting.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}

	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}

	return &Logger{
		prefix: prefix,
		level:  l.level,
		color:  l.color,
	}
}

// Level reports the logger's effective level.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelDisabled
	}
	return l.level
}

// output is the internal logging method.
func (l *Logger) output(calldepth int, line string) {
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	log.Output(calldepth, line)
}

// enabled reports whether a message at the given level should be emitted.
func (l *Logger) enabled(level Level) bool {
	return l != nil && l.level >= level
}

// Info logs information with semantics equivalent to fmt.Print, gated on
// LevelInfo.
func (l *Logger) Info(v ...interface{}) {
	if l.enabled(LevelInfo) {
		l.output(3, fmt.Sprint(v...))
	}
}

// Infof logs information with semantics equivalent to fmt.Printf, gated on
// LevelInfo.
func (l *Logger) Infof(format string, v ...interface{}) {
	if l.enabled(LevelInfo) {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Debug logs information with semantics equivalent to fmt.Print, gated on
// LevelDebug.
func (l *Logger) Debug(v ...interface{}) {
	if l.enabled(LevelDebug) {
		l.output(3, fmt.Sprint(v...))
	}
}

// Debugf logs information with semantics equivalent to fmt.Printf, gated on
// LevelDebug.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.enabled(LevelDebug) {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Trace logs information with semantics equivalent to fmt.Print, gated on
// LevelTrace. Used for per-event detail (raw inotify records, hash lookups).
func (l *Logger) Trace(v ...interface{}) {
	if l.enabled(LevelTrace) {
		l.output(3, fmt.Sprint(v...))
	}
}

// Tracef logs information with semantics equivalent to fmt.Printf, gated on
// LevelTrace.
func (l *Logger) Tracef(format string, v ...interface{}) {
	if l.enabled(LevelTrace) {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Writer returns an io.Writer that logs each complete line written to it at
// LevelDebug, buffering any trailing partial line until a later write
// completes it. Used to capture a subprocess's combined stdout/stderr into
// the daemon's own log stream.
func (l *Logger) Writer() io.Writer {
	return &writer{callback: func(line string) { l.Debug(line) }}
}

// Warn logs error information with a warning prefix, colorized yellow when
// the destination is a terminal.
func (l *Logger) Warn(err error) {
	if l.enabled(LevelWarn) {
		if l.color {
			l.output(3, color.YellowString("Warning: %v", err))
		} else {
			l.output(3, fmt.Sprintf("Warning: %v", err))
		}
	}
}

// Error logs error information with an error prefix, colorized red when the
// destination is a terminal.
func (l *Logger) Error(err error) {
	if l.enabled(LevelError) {
		if l.color {
			l.output(3, color.RedString("Error: %v", err))
		} else {
			l.output(3, fmt.Sprintf("Error: %v", err))
		}
	}
}
