// Package logging configures the zap loggers used by the key API, the self
// tests and the command line tool. The arithmetic packages never log.
//
// Loggers are obtained once, usually into a package variable, with
// MustGetLogger. Init and SetLevel may run afterwards and apply to every
// logger already handed out.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is applied by Init.
type Config struct {
	// Format is "console" (the default) or "json".
	Format string

	// Level is a zap level name; empty means CORECRYPTO_LOGGING_LEVEL from
	// the environment, then info.
	Level string

	// Writer defaults to os.Stderr.
	Writer io.Writer
}

type state struct {
	mutex   sync.RWMutex
	encoder zapcore.Encoder
	writer  zapcore.WriteSyncer
	level   zap.AtomicLevel
}

var global = newState()

func newState() *state {
	s := &state{level: zap.NewAtomicLevelAt(zapcore.InfoLevel)}
	s.encoder = zapcore.NewConsoleEncoder(encoderConfig())
	s.writer = zapcore.Lock(os.Stderr)
	return s
}

func encoderConfig() zapcore.EncoderConfig {
	c := zap.NewProductionEncoderConfig()
	c.NameKey = "name"
	c.EncodeTime = zapcore.ISO8601TimeEncoder
	return c
}

// Init replaces the output format, level and sink of all loggers.
func Init(c Config) error {
	var enc zapcore.Encoder
	switch strings.ToLower(c.Format) {
	case "", "console":
		enc = zapcore.NewConsoleEncoder(encoderConfig())
	case "json":
		enc = zapcore.NewJSONEncoder(encoderConfig())
	default:
		return errors.Errorf("unknown log format %q", c.Format)
	}

	if c.Level == "" {
		c.Level = os.Getenv("CORECRYPTO_LOGGING_LEVEL")
	}
	if c.Level == "" {
		c.Level = zapcore.InfoLevel.String()
	}
	if err := SetLevel(c.Level); err != nil {
		return err
	}

	if c.Writer == nil {
		c.Writer = os.Stderr
	}
	var ws zapcore.WriteSyncer
	switch w := c.Writer.(type) {
	case *os.File:
		ws = zapcore.Lock(w)
	case zapcore.WriteSyncer:
		ws = w
	default:
		ws = zapcore.AddSync(w)
	}

	global.mutex.Lock()
	global.encoder = enc
	global.writer = ws
	global.mutex.Unlock()
	return nil
}

// SetLevel changes the minimum level of every logger.
func SetLevel(level string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	global.level.SetLevel(l)
	return nil
}

// Level returns the current minimum level.
func Level() zapcore.Level {
	return global.level.Level()
}

// MustGetLogger returns a named logger bound to the global configuration.
func MustGetLogger(name string) *zap.SugaredLogger {
	if name == "" {
		panic("logging: empty logger name")
	}
	l := zap.New(&core{LevelEnabler: global.level},
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return l.Named(name).Sugar()
}

// core encodes with whatever encoder and writer are current at write time.
type core struct {
	zapcore.LevelEnabler
	fields []zapcore.Field
}

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	return &core{
		LevelEnabler: c.LevelEnabler,
		fields:       append(c.fields[:len(c.fields):len(c.fields)], fields...),
	}
}

func (c *core) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *core) Write(e zapcore.Entry, fields []zapcore.Field) error {
	global.mutex.RLock()
	enc := global.encoder.Clone()
	w := global.writer
	global.mutex.RUnlock()

	for _, f := range c.fields {
		f.AddTo(enc)
	}
	buf, err := enc.EncodeEntry(e, fields)
	if err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	buf.Free()
	if err != nil {
		return err
	}
	if e.Level > zapcore.ErrorLevel {
		return w.Sync()
	}
	return nil
}

func (c *core) Sync() error {
	global.mutex.RLock()
	w := global.writer
	global.mutex.RUnlock()
	return w.Sync()
}
