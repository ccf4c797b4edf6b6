package taskrt

import (
	"fmt"
	"io"
	"sync"

	"github.com/joeycumines/logiface"
)

// Field is one structured logging attribute, narrowed to what the
// scheduler actually emits.
type Field struct {
	Key   string
	Value any
}

// F builds a Field inline, e.g. taskrt.F("worker", id).
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Logger is the leveled logging interface the scheduler logs through
// (including reactor turn failures its parked workers hit); packages
// reactor and park do not log. Four levels are enough:
// the runtime has no phases or per-loop identity worth richer
// structured categories.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// noopLogger discards everything. It is the default when no Logger is
// configured, so the hot path never pays for a disabled log call.
type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Warn(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

// NoopLogger returns a Logger that discards every call.
func NoopLogger() Logger { return noopLogger{} }

// logifaceLogger adapts a *logiface.Logger[logiface.Event] into the
// narrower Logger interface this package logs through, so any of the
// logiface backends (zerolog, logrus, slog, stumpy) can be plugged in
// unchanged.
type logifaceLogger struct {
	l *logiface.Logger[logiface.Event]
}

// NewLogifaceLogger wraps l so the scheduler can log through it. A nil l yields a Logger that discards
// everything, same as NoopLogger.
func NewLogifaceLogger(l *logiface.Logger[logiface.Event]) Logger {
	if l == nil {
		return noopLogger{}
	}
	return logifaceLogger{l: l}
}

func (a logifaceLogger) log(b *logiface.Builder[logiface.Event], msg string, fields []Field) {
	if !b.Enabled() {
		return
	}
	for _, f := range fields {
		b = b.Any(f.Key, f.Value)
	}
	b.Log(msg)
}

func (a logifaceLogger) Debug(msg string, fields ...Field) { a.log(a.l.Debug(), msg, fields) }
func (a logifaceLogger) Info(msg string, fields ...Field)  { a.log(a.l.Info(), msg, fields) }
func (a logifaceLogger) Warn(msg string, fields ...Field)  { a.log(a.l.Warning(), msg, fields) }
func (a logifaceLogger) Error(msg string, fields ...Field) { a.log(a.l.Err(), msg, fields) }

// lineEvent is the smallest possible logiface.Event: one severity
// level, an optional message, and the fields attached to it. It backs
// NewStdoutLogifaceLogger, a minimal concrete logiface backend good
// enough for cmd/echo's demo logging, sparing callers who just want
// readable lines on stdout from pulling in one of the fuller
// logiface-zerolog/-logrus/-slog adapter packages.
type lineEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	msg    string
	fields []Field
}

func (e *lineEvent) Level() logiface.Level { return e.level }

func (e *lineEvent) AddField(key string, val any) {
	e.fields = append(e.fields, Field{Key: key, Value: val})
}

func (e *lineEvent) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

var linePool = sync.Pool{New: func() any { return new(lineEvent) }}

func newLineEvent(level logiface.Level) *lineEvent {
	e := linePool.Get().(*lineEvent)
	e.level = level
	e.msg = ""
	e.fields = e.fields[:0]
	return e
}

// NewStdoutLogifaceLogger builds a Logger that writes one line per
// call to out, at or above level, formatted as
// "LEVEL msg key=val key=val". It exists to give cmd/echo readable
// output without a second dependency; production use is expected to
// plug in a fuller logiface writer (zerolog, slog, logrus, ...)
// instead.
func NewStdoutLogifaceLogger(out io.Writer, level logiface.Level) Logger {
	l := logiface.New[*lineEvent](
		logiface.WithEventFactory[*lineEvent](logiface.EventFactoryFunc[*lineEvent](newLineEvent)),
		logiface.WithEventReleaser[*lineEvent](logiface.EventReleaserFunc[*lineEvent](func(e *lineEvent) {
			linePool.Put(e)
		})),
		logiface.WithWriter[*lineEvent](logiface.WriterFunc[*lineEvent](func(e *lineEvent) error {
			_, err := fmt.Fprintf(out, "%-7s %s%s\n", e.level, e.msg, formatFields(e.fields))
			return err
		})),
		logiface.WithLevel[*lineEvent](level),
	)
	return NewLogifaceLogger(l.Logger())
}

func formatFields(fields []Field) string {
	if len(fields) == 0 {
		return ""
	}
	s := ""
	for _, f := range fields {
		s += fmt.Sprintf(" %s=%v", f.Key, f.Value)
	}
	return s
}
