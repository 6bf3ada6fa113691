// Package logger provides the levelled, printf style loggers procctl uses.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	nocolor   = "0"
	red       = "31"
	green     = "38;5;48"
	yellow    = "33"
	gray      = "38;5;251"
	lightgray = "38;5;243"
	cyan      = "1;36"
)

const (
	DateFormat = "2006-01-02 15:04:05"
)

var windowsColors bool

type Logger interface {
	Debug(format string, v ...any)
	Error(format string, v ...any)
	Fatal(format string, v ...any)
	Notice(format string, v ...any)
	Warn(format string, v ...any)
	Info(format string, v ...any)

	WithFields(fields ...Field) Logger
	SetLevel(level Level)
	Level() Level
}

// Printer formats and writes a single log line.
type Printer interface {
	Print(level Level, msg string, fields Fields)
}

// ConsoleLogger filters by level and hands lines to a Printer.
type ConsoleLogger struct {
	level   Level
	exitFn  func(int)
	fields  Fields
	printer Printer
}

// NewConsoleLogger returns a logger at NOTICE level. exitFn is called by
// Fatal; nil means os.Exit.
func NewConsoleLogger(printer Printer, exitFn func(int)) Logger {
	if exitFn == nil {
		exitFn = os.Exit
	}
	return &ConsoleLogger{
		level:   NOTICE,
		printer: printer,
		exitFn:  exitFn,
	}
}

// WithFields returns a copy of the logger with the provided fields
func (l *ConsoleLogger) WithFields(fields ...Field) Logger {
	clone := *l
	clone.fields = append(append(Fields{}, l.fields...), fields...)
	return &clone
}

// SetLevel sets the level for the logger
func (l *ConsoleLogger) SetLevel(level Level) {
	l.level = level
}

func (l *ConsoleLogger) Level() Level {
	return l.level
}

func (l *ConsoleLogger) Debug(format string, v ...any) {
	if l.level == DEBUG {
		l.printer.Print(DEBUG, fmt.Sprintf(format, v...), l.fields)
	}
}

func (l *ConsoleLogger) Error(format string, v ...any) {
	if l.level <= ERROR {
		l.printer.Print(ERROR, fmt.Sprintf(format, v...), l.fields)
	}
}

func (l *ConsoleLogger) Fatal(format string, v ...any) {
	l.printer.Print(FATAL, fmt.Sprintf(format, v...), l.fields)
	l.exitFn(1)
}

func (l *ConsoleLogger) Notice(format string, v ...any) {
	if l.level <= NOTICE {
		l.printer.Print(NOTICE, fmt.Sprintf(format, v...), l.fields)
	}
}

func (l *ConsoleLogger) Info(format string, v ...any) {
	if l.level <= INFO {
		l.printer.Print(INFO, fmt.Sprintf(format, v...), l.fields)
	}
}

func (l *ConsoleLogger) Warn(format string, v ...any) {
	if l.level <= WARN {
		l.printer.Print(WARN, fmt.Sprintf(format, v...), l.fields)
	}
}

// TextPrinter writes human readable lines, coloured when Colors is set.
type TextPrinter struct {
	Colors bool
	Writer io.Writer

	mu sync.Mutex
}

func NewTextPrinter(w io.Writer) *TextPrinter {
	return &TextPrinter{
		Writer: w,
		Colors: ColorsSupported(),
	}
}

func (l *TextPrinter) Print(level Level, msg string, fields Fields) {
	now := time.Now().Format(DateFormat)

	var line strings.Builder

	if l.Colors {
		levelColor := green
		messageColor := nocolor
		fieldColor := lightgray

		switch level {
		case DEBUG:
			levelColor = gray
			messageColor = gray
		case NOTICE:
			levelColor = cyan
		case WARN:
			levelColor = yellow
		case ERROR, FATAL:
			levelColor = red
			messageColor = red
		}

		fmt.Fprintf(&line, "\x1b[%sm%s %-6s\x1b[0m \x1b[%sm%s\x1b[0m", levelColor, now, level, messageColor, msg)
		for _, field := range fields {
			fmt.Fprintf(&line, " \x1b[%sm%s=\x1b[0m%s", fieldColor, field.Key(), field.String())
		}
	} else {
		fmt.Fprintf(&line, "%s %-6s %s", now, level, msg)
		for _, field := range fields {
			fmt.Fprintf(&line, " %s=%s", field.Key(), field.String())
		}
	}
	line.WriteString("\n")

	// Make sure we're only outputting a line one at a time
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.Writer, line.String()) //nolint:errcheck // logging is best effort
}

// JSONPrinter writes one JSON object per line.
type JSONPrinter struct {
	Writer io.Writer

	mu sync.Mutex
}

func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{Writer: w}
}

func (p *JSONPrinter) Print(level Level, msg string, fields Fields) {
	record := make(map[string]string, len(fields)+3)
	for _, field := range fields {
		record[field.Key()] = field.String()
	}
	record["ts"] = time.Now().Format(time.RFC3339)
	record["level"] = level.String()
	record["msg"] = msg

	b, err := json.Marshal(record)
	if err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.Writer, "%s\n", b) //nolint:errcheck // logging is best effort
}

// ColorsSupported reports whether stderr is a terminal that can show colours.
func ColorsSupported() bool {
	// Color support for windows is set in init
	if runtime.GOOS == "windows" && !windowsColors {
		return false
	}

	return term.IsTerminal(int(os.Stderr.Fd()))
}

// Discard is a logger that throws everything away.
var Discard = NewConsoleLogger(NewTextPrinter(io.Discard), func(int) {})
