package log

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level defines a log level for logging messages.
type Level = zapcore.Level

const (
	DEBUG = zapcore.DebugLevel
	INFO  = zapcore.InfoLevel
	WARN  = zapcore.WarnLevel
	ERROR = zapcore.ErrorLevel
)

// Encoding defines the log encoding.
type Encoding = string

const (
	Console Encoding = "console"
	JSON    Encoding = "json"
)

var (
	mu              sync.RWMutex
	defaultLevel    = zap.NewAtomicLevelAt(INFO)
	defaultEncoding = Console
)

// ParseLevel returns the level from the given string.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, errors.New("logger: invalid log level " + level)
	}
}

// SetLevel changes the level of every logger created by this package, including existing ones.
func SetLevel(level Level) {
	defaultLevel.SetLevel(level)
}

// SetEncoding switches the encoding of every logger created by this package, including existing ones.
func SetEncoding(encoding Encoding) error {
	switch strings.ToLower(encoding) {
	case Console, JSON:
	default:
		return fmt.Errorf("logger: unsupported encoding %s", encoding)
	}

	mu.Lock()
	defaultEncoding = strings.ToLower(encoding)
	mu.Unlock()

	return nil
}

func currentEncoding() Encoding {
	mu.RLock()
	defer mu.RUnlock()

	return defaultEncoding
}

type options struct {
	out    zapcore.WriteSyncer
	fields []zap.Field
}

// Option is a logger option.
type Option func(o *options)

// WithOutput redirects the logger, mostly for tests.
func WithOutput(out zapcore.WriteSyncer) Option {
	return func(o *options) {
		o.out = out
	}
}

// WithFields sets fields that are written with every entry.
func WithFields(fields ...zap.Field) Option {
	return func(o *options) {
		o.fields = fields
	}
}

// New returns a zap logger named after module.
func New(module string, opts ...Option) *zap.Logger {
	o := &options{out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	out := zapcore.Lock(o.out)
	core := &encodingCore{
		console: zapcore.NewCore(newEncoder(Console), out, defaultLevel),
		json:    zapcore.NewCore(newEncoder(JSON), out, defaultLevel),
	}

	return zap.New(core, zap.AddCaller()).Named(module).With(o.fields...)
}

// encodingCore writes through the console or JSON core, whichever is current at write time.
type encodingCore struct {
	console zapcore.Core
	json    zapcore.Core
}

func (c *encodingCore) current() zapcore.Core {
	if currentEncoding() == JSON {
		return c.json
	}
	return c.console
}

func (c *encodingCore) Enabled(level zapcore.Level) bool {
	return defaultLevel.Enabled(level)
}

func (c *encodingCore) With(fields []zapcore.Field) zapcore.Core {
	return &encodingCore{
		console: c.console.With(fields),
		json:    c.json.With(fields),
	}
}

func (c *encodingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *encodingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.current().Write(ent, fields)
}

func (c *encodingCore) Sync() error {
	return c.current().Sync()
}

func newEncoder(encoding Encoding) zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if encoding == JSON {
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	}

	cfg.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(fmt.Sprintf("[%s]", name))
	}
	return zapcore.NewConsoleEncoder(cfg)
}
