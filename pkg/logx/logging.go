package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// Field appends one key/value to a zerolog event. Fields are applied in
// order; a repeated key keeps the last value. The console writer renders
// them as key=value, JSON sinks keep them structured.
type Field func(e *zerolog.Event)

func String(k, v string) Field          { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field         { return func(e *zerolog.Event) { e.Int(k, v) } }
func Int64(k string, v int64) Field     { return func(e *zerolog.Event) { e.Int64(k, v) } }
func Uint64(k string, v uint64) Field   { return func(e *zerolog.Event) { e.Uint64(k, v) } }
func Bool(k string, v bool) Field       { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Time(k string, v time.Time) Field  { return func(e *zerolog.Event) { e.Time(k, v) } }
func Any(k string, v any) Field         { return func(e *zerolog.Event) { e.Interface(k, v) } }
func Dur(k string, v time.Duration) Field {
	return func(e *zerolog.Event) { e.Dur(k, v) }
}

func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

func Stack(stack string) Field {
	return func(e *zerolog.Event) {
		if strings.TrimSpace(stack) != "" {
			e.Str("stack", stack)
		}
	}
}

// rootSource yields the zerolog root a Logger writes through. The Service
// implements it so component loggers pick up Apply() swaps; fixedRoot wraps
// a root that never changes.
type rootSource interface {
	root() zerolog.Logger
}

type fixedRoot struct{ zl zerolog.Logger }

func (f fixedRoot) root() zerolog.Logger { return f.zl }

// Logger is the structured logger handed to components.
//
// Loggers derived from a Service observe Apply() swaps without being
// recreated. The zero value is valid and writes nothing.
type Logger struct {
	src   rootSource
	bound []Field
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return Logger{src: fixedRoot{zerolog.Nop()}}
}

// NewConsole builds a standalone console logger. It is for early startup
// paths that need to report before the log service exists.
func NewConsole(level string) Logger {
	zerolog.TimeFieldFormat = timeFormat
	zerolog.ErrorFieldName = "err"
	return Logger{src: fixedRoot{consoleRoot(levelFrom(level))}}
}

func (l Logger) IsZero() bool { return l.src == nil && len(l.bound) == 0 }

// With returns a logger carrying extra fixed fields.
func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	merged := make([]Field, 0, len(l.bound)+len(fields))
	merged = append(merged, l.bound...)
	merged = append(merged, fields...)
	return Logger{src: l.src, bound: merged}
}

func (l Logger) Debug(msg string, fields ...Field) { l.emit(zerolog.DebugLevel, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.emit(zerolog.InfoLevel, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.emit(zerolog.WarnLevel, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.emit(zerolog.ErrorLevel, msg, fields) }

func (l Logger) emit(level zerolog.Level, msg string, fields []Field) {
	var zl zerolog.Logger
	if l.src != nil {
		zl = l.src.root()
	} else {
		zl = zerolog.Nop()
	}
	e := zl.WithLevel(level)
	if e == nil {
		return
	}
	if site := callsite(3); site != "" {
		e.Str(zerolog.CallerFieldName, site)
	}
	for _, f := range l.bound {
		if f != nil {
			f(e)
		}
	}
	for _, f := range fields {
		if f != nil {
			f(e)
		}
	}
	e.Msg(msg)
}

// callsite returns file:line of the logging call, without the package path.
func callsite(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok || file == "" {
		return ""
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// Service owns the root logger and the optional log file. Apply swaps
// level and outputs at runtime; loggers handed out earlier follow along.
type Service struct {
	mu   sync.Mutex
	cur  atomic.Value // zerolog.Logger
	file *os.File
}

func (s *Service) root() zerolog.Logger {
	if v, ok := s.cur.Load().(zerolog.Logger); ok {
		return v
	}
	return zerolog.Nop()
}

// New builds the log service with cfg applied and returns it together
// with the root Logger.
func New(cfg Config) (*Service, Logger) {
	zerolog.TimeFieldFormat = timeFormat
	zerolog.ErrorFieldName = "err"

	s := &Service{}
	s.cur.Store(consoleRoot(levelFrom(cfg.Level)))
	s.Apply(cfg)
	return s, Logger{src: s}
}

// Apply rebuilds the root logger from cfg. Safe for concurrent use.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	zl, f := buildRoot(cfg)
	if s.file != nil {
		_ = s.file.Close()
	}
	s.file = f
	s.cur.Store(zl)
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	return nil
}

// buildRoot assembles the writer stack for cfg. A file that cannot be
// opened is reported on stderr and skipped; with nothing else left the
// console is used so logs never vanish entirely.
func buildRoot(cfg Config) (zerolog.Logger, *os.File) {
	var (
		writers []io.Writer
		file    *os.File
	)
	if cfg.Console {
		writers = append(writers, consoleWriter(os.Stdout))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = "./penpal.log"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: cannot open log file %q: %v\n", path, err)
		} else {
			file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}
	if len(writers) == 0 {
		writers = append(writers, consoleWriter(os.Stdout))
	}

	out := zerolog.MultiLevelWriter(writers...)
	zl := zerolog.New(out).Level(levelFrom(cfg.Level)).With().Timestamp().Logger()
	return zl, file
}

func consoleRoot(lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(consoleWriter(os.Stdout)).Level(lvl).With().Timestamp().Logger()
}

func consoleWriter(w io.Writer) io.Writer {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat}
	cw.FormatCaller = func(i interface{}) string {
		s, _ := i.(string)
		return s
	}
	return cw
}

// levelFrom parses a level name, tolerating case and "warning".
// Unknown names fall back to info.
func levelFrom(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
