package taskrt_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/taskrt/taskrt"
	"github.com/stretchr/testify/assert"
)

func TestNoopLoggerDiscardsEverything(t *testing.T) {
	l := taskrt.NoopLogger()
	assert.NotPanics(t, func() {
		l.Debug("x", taskrt.F("a", 1))
		l.Info("x")
		l.Warn("x")
		l.Error("x")
	})
}

func TestStdoutLogifaceLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := taskrt.NewStdoutLogifaceLogger(&buf, logiface.LevelInformational)

	l.Debug("should be filtered out")
	assert.Empty(t, buf.String())

	l.Info("hello", taskrt.F("worker", 3))
	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "worker=3")
}

func TestStdoutLogifaceLoggerErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	l := taskrt.NewStdoutLogifaceLogger(&buf, logiface.LevelInformational)
	l.Error("boom", taskrt.F("err", "disk full"))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1)
	assert.Contains(t, lines[0], "boom")
	assert.Contains(t, lines[0], "err=disk full")
}

func TestNewLogifaceLoggerNilIsNoop(t *testing.T) {
	l := taskrt.NewLogifaceLogger(nil)
	assert.NotPanics(t, func() { l.Info("whatever") })
}
