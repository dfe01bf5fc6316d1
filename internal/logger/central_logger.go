package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelTrace sits below slog.LevelDebug for very verbose output such as SQL.
const LevelTrace = slog.Level(-8)

// TraceIDKey is the context key carrying a request correlation ID.
type traceIDContextKey struct{}

// TraceIDKey is exported so HTTP middleware can store IDs directly.
var TraceIDKey = traceIDContextKey{}

// WithTraceID returns a context carrying the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// TraceIDFromContext extracts the trace ID set by WithTraceID.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

var globalLogger atomic.Pointer[CentralLogger]

// Global returns the process-wide logger. Before SetGlobal is called it
// returns a console-only logger at info level.
func Global() Logger {
	if l := globalLogger.Load(); l != nil {
		return l
	}
	return NewSlogLogger(os.Stderr, LogLevelInfo, time.Local)
}

// SetGlobal installs the process-wide logger.
func SetGlobal(l *CentralLogger) {
	globalLogger.Store(l)
}

// CentralLogger owns all handlers and file writers. Module loggers derive from it.
type CentralLogger struct {
	handler      slog.Handler
	moduleLevels map[string]slog.Level
	modules      map[string]slog.Handler
	closers      []io.Closer
	timezone     *time.Location
	baseLevel    slog.Level
	mu           sync.Mutex
	root         *slogLogger
}

// NewCentralLogger builds the handler tree described by cfg.
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		cfg = &LoggingConfig{}
	}
	applyConfigDefaults(cfg)

	tz, err := loadTimezone(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	cl := &CentralLogger{
		moduleLevels: make(map[string]slog.Level, len(cfg.ModuleLevels)),
		modules:      make(map[string]slog.Handler, len(cfg.ModuleOutputs)),
		timezone:     tz,
		baseLevel:    parseLogLevel(cfg.DefaultLevel),
	}

	var handlers []slog.Handler
	var console slog.Handler
	if cfg.Console != nil && cfg.Console.Enabled {
		console = newConsoleHandler(os.Stdout, levelOr(cfg.Console.Level, cl.baseLevel))
		handlers = append(handlers, console)
	}

	if cfg.FileOutput != nil && cfg.FileOutput.Enabled && cfg.FileOutput.Path != "" {
		w, err := cl.openRotating(cfg.FileOutput.Path, cfg.FileOutput)
		if err != nil {
			cl.closeAll()
			return nil, err
		}
		handlers = append(handlers, newJSONHandler(w, levelOr(cfg.FileOutput.Level, cl.baseLevel), tz))
	}

	for name, mo := range cfg.ModuleOutputs {
		if !mo.Enabled || mo.FilePath == "" {
			continue
		}
		w, err := cl.openRotating(mo.FilePath, cfg.FileOutput)
		if err != nil {
			cl.closeAll()
			return nil, err
		}
		h := newJSONHandler(w, levelOr(mo.Level, cl.baseLevel), tz)
		if mo.ConsoleAlso && console != nil {
			h = newMultiWriterHandler(h, console)
		}
		cl.modules[name] = h
	}

	for name, lvl := range cfg.ModuleLevels {
		cl.moduleLevels[name] = parseLogLevel(lvl)
	}

	switch len(handlers) {
	case 0:
		cl.handler = slog.NewTextHandler(io.Discard, nil)
	case 1:
		cl.handler = handlers[0]
	default:
		cl.handler = newMultiWriterHandler(handlers...)
	}

	cl.root = &slogLogger{handler: cl.handler, level: cl.baseLevel, central: cl}
	return cl, nil
}

// openRotating returns a lumberjack writer; rotation settings come from the main file output.
func (cl *CentralLogger) openRotating(path string, rot *FileOutput) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %s: %w", path, err)
	}
	lj := &lumberjack.Logger{
		Filename:  path,
		MaxSize:   DefaultMaxSize,
		MaxAge:    DefaultMaxAge,
		LocalTime: true,
	}
	if rot != nil {
		if rot.MaxSize > 0 {
			lj.MaxSize = rot.MaxSize
		}
		lj.MaxAge = rot.MaxAge
		lj.MaxBackups = rot.MaxRotatedFiles
		lj.Compress = rot.Compress
	}
	cl.mu.Lock()
	cl.closers = append(cl.closers, lj)
	cl.mu.Unlock()
	return lj, nil
}

// Module returns a logger scoped to name. Dedicated module outputs and
// per-module levels are honored for the top-level module name.
func (cl *CentralLogger) Module(name string) Logger {
	return cl.root.Module(name)
}

func (cl *CentralLogger) Trace(msg string, fields ...Field) { cl.root.Trace(msg, fields...) }
func (cl *CentralLogger) Debug(msg string, fields ...Field) { cl.root.Debug(msg, fields...) }
func (cl *CentralLogger) Info(msg string, fields ...Field)  { cl.root.Info(msg, fields...) }
func (cl *CentralLogger) Warn(msg string, fields ...Field)  { cl.root.Warn(msg, fields...) }
func (cl *CentralLogger) Error(msg string, fields ...Field) { cl.root.Error(msg, fields...) }

func (cl *CentralLogger) With(fields ...Field) Logger { return cl.root.With(fields...) }

func (cl *CentralLogger) WithContext(ctx context.Context) Logger { return cl.root.WithContext(ctx) }

func (cl *CentralLogger) Log(level LogLevel, msg string, fields ...Field) {
	cl.root.Log(level, msg, fields...)
}

// Flush is a no-op; lumberjack writes through.
func (cl *CentralLogger) Flush() error { return nil }

// Close releases all rotating file writers.
func (cl *CentralLogger) Close() error {
	return cl.closeAll()
}

func (cl *CentralLogger) closeAll() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	var firstErr error
	for _, c := range cl.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	cl.closers = nil
	return firstErr
}

func (cl *CentralLogger) moduleHandler(name string) (slog.Handler, slog.Level) {
	top, _, _ := strings.Cut(name, ".")
	h := cl.handler
	if mh, ok := cl.modules[top]; ok {
		h = mh
	}
	lvl := cl.baseLevel
	if ml, ok := cl.moduleLevels[name]; ok {
		lvl = ml
	} else if ml, ok := cl.moduleLevels[top]; ok {
		lvl = ml
	}
	return h, lvl
}

// slogLogger implements Logger over a slog.Handler.
type slogLogger struct {
	handler slog.Handler
	module  string
	level   slog.Level
	attrs   []slog.Attr
	central *CentralLogger
}

// NewSlogLogger creates a text logger writing to w, intended for tests and
// simple tools that do not need the full CentralLogger.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	if tz == nil {
		tz = time.UTC
	}
	lvl := parseLogLevel(string(level))
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: replaceAttr(tz, false),
	})
	return &slogLogger{handler: h, level: lvl}
}

func (l *slogLogger) Module(name string) Logger {
	full := name
	if l.module != "" {
		full = l.module + "." + name
	}
	next := &slogLogger{
		handler: l.handler,
		module:  full,
		level:   l.level,
		attrs:   l.attrs,
		central: l.central,
	}
	if l.central != nil {
		next.handler, next.level = l.central.moduleHandler(full)
	}
	return next
}

func (l *slogLogger) Trace(msg string, fields ...Field) {
	l.log(context.Background(), LevelTrace, msg, fields)
}

func (l *slogLogger) Debug(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelDebug, msg, fields)
}

func (l *slogLogger) Info(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelInfo, msg, fields)
}

func (l *slogLogger) Warn(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelWarn, msg, fields)
}

func (l *slogLogger) Error(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelError, msg, fields)
}

func (l *slogLogger) Log(level LogLevel, msg string, fields ...Field) {
	l.log(context.Background(), parseLogLevel(string(level)), msg, fields)
}

func (l *slogLogger) With(fields ...Field) Logger {
	attrs := make([]slog.Attr, 0, len(l.attrs)+len(fields))
	attrs = append(attrs, l.attrs...)
	for _, f := range fields {
		attrs = append(attrs, fieldToAttr(f))
	}
	return &slogLogger{
		handler: l.handler,
		module:  l.module,
		level:   l.level,
		attrs:   attrs,
		central: l.central,
	}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	if id := TraceIDFromContext(ctx); id != "" {
		return l.With(String(traceIDKey, id))
	}
	return l
}

func (l *slogLogger) Flush() error { return nil }

func (l *slogLogger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if level < l.level || !l.handler.Enabled(ctx, level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, 0)
	if l.module != "" {
		r.AddAttrs(slog.String(moduleKey, l.module))
	}
	r.AddAttrs(l.attrs...)
	for _, f := range fields {
		r.AddAttrs(fieldToAttr(f))
	}
	_ = l.handler.Handle(ctx, r)
}

func fieldToAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		return slog.String(f.Key, v)
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case uint64:
		return slog.Uint64(f.Key, v)
	case float64:
		return slog.Float64(f.Key, v)
	case bool:
		return slog.Bool(f.Key, v)
	case time.Duration:
		return slog.Duration(f.Key, v)
	case time.Time:
		return slog.Time(f.Key, v)
	default:
		return slog.Any(f.Key, v)
	}
}

func newConsoleHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr(nil, true),
	})
}

func newJSONHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr(tz, false),
	})
}

// replaceAttr renders the trace level name and localizes or drops timestamps.
func replaceAttr(tz *time.Location, dropTime bool) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			if dropTime {
				return slog.Attr{}
			}
			if tz != nil {
				return slog.String(slog.TimeKey, a.Value.Time().In(tz).Format(time.RFC3339))
			}
		case slog.LevelKey:
			if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
				return slog.String(slog.LevelKey, "TRACE")
			}
		}
		return a
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func levelOr(level string, fallback slog.Level) slog.Level {
	if level == "" {
		return fallback
	}
	return parseLogLevel(level)
}

func loadTimezone(name string) (*time.Location, error) {
	switch strings.TrimSpace(name) {
	case "", "Local", "local":
		return time.Local, nil
	case "UTC", "utc":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid logging timezone %q: %w", name, err)
	}
	return loc, nil
}
