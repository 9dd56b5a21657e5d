package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	var (
		f   = "%s-%s"
		v   = []interface{}{"hello", "world"}
		buf bytes.Buffer
		l   = NewLoggerWithConfig(LogConfig{Level: "info", Format: "json", Output: &buf})
	)

	l.Info(v...)
	assert.Contains(t, buf.String(), `"level":"info"`)
	assert.Contains(t, buf.String(), "helloworld")
	buf.Reset()

	l.Infof(f, v...)
	assert.Contains(t, buf.String(), "hello-world")
	buf.Reset()

	l.Warn(v...)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	buf.Reset()

	l.Warnf(f, v...)
	assert.Contains(t, buf.String(), "hello-world")
	buf.Reset()

	l.Error(v...)
	assert.Contains(t, buf.String(), `"level":"error"`)
	buf.Reset()

	l.Errorf(f, v...)
	assert.Contains(t, buf.String(), "hello-world")
	buf.Reset()

	l.Critical(v...)
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "logger_test.go")
	buf.Reset()

	l.Criticalf(f, v...)
	assert.Contains(t, buf.String(), "hello-world")
	assert.Contains(t, buf.String(), "logger_test.go")
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithConfig(LogConfig{Level: "warn", Format: "json", Output: &buf})
	l.Info("quiet")
	assert.Empty(t, buf.String())
	l.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestLoggerConsole(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithConfig(LogConfig{Output: &buf})
	l.Warnf("%d failures", 3)
	assert.Contains(t, buf.String(), "WRN")
	assert.Contains(t, buf.String(), "3 failures")
}
