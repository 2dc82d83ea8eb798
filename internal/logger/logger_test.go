package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(buf *bytes.Buffer) *StructuredLogger {
	return &StructuredLogger{
		logger: &logrus.Logger{
			Out:       buf,
			Formatter: &logrus.JSONFormatter{},
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.DebugLevel,
		},
		fields: make(logrus.Fields),
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		format   string
		expected logrus.Level
	}{
		{
			name:     "Debug level JSON format",
			level:    "debug",
			format:   "json",
			expected: logrus.DebugLevel,
		},
		{
			name:     "Info level text format",
			level:    "info",
			format:   "text",
			expected: logrus.InfoLevel,
		},
		{
			name:     "Invalid level defaults to info",
			level:    "invalid",
			format:   "json",
			expected: logrus.InfoLevel,
		},
		{
			name:     "Warning alias",
			level:    "warning",
			format:   "json",
			expected: logrus.WarnLevel,
		},
		{
			name:     "Error level",
			level:    "error",
			format:   "json",
			expected: logrus.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.level, tt.format)
			structLogger, ok := logger.(*StructuredLogger)
			require.True(t, ok)
			assert.Equal(t, tt.expected, structLogger.logger.GetLevel())
		})
	}
}

func TestStructuredLogger_LogLevels(t *testing.T) {
	var buf bytes.Buffer
	structLogger := newBufferedLogger(&buf)

	tests := []struct {
		name     string
		logFunc  func()
		expected string
	}{
		{
			name: "Debug log",
			logFunc: func() {
				structLogger.Debug("Debug message", map[string]interface{}{"key": "value"})
			},
			expected: "debug",
		},
		{
			name: "Info log",
			logFunc: func() {
				structLogger.Info("Info message", map[string]interface{}{"key": "value"})
			},
			expected: "info",
		},
		{
			name: "Warn log",
			logFunc: func() {
				structLogger.Warn("Warn message", map[string]interface{}{"key": "value"})
			},
			expected: "warning",
		},
		{
			name: "Error log",
			logFunc: func() {
				structLogger.Error("Error message", errors.New("test error"), map[string]interface{}{"key": "value"})
			},
			expected: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()

			output := buf.String()
			assert.Contains(t, output, tt.expected)
			assert.Contains(t, output, "component")
			assert.Contains(t, output, "report_api")
		})
	}
}

func TestStructuredLogger_ErrorDoesNotMutateFields(t *testing.T) {
	var buf bytes.Buffer
	structLogger := newBufferedLogger(&buf)

	fields := map[string]interface{}{"operation": "expire"}
	structLogger.Error("Sweep failed", errors.New("boom"), fields)

	_, hasError := fields["error"]
	assert.False(t, hasError)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "expire", entry["operation"])
}

func TestStructuredLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	structLogger := newBufferedLogger(&buf)

	ctx := ContextWithRequestInfo(context.Background(), "req-123", "192.168.1.1", "user_abc", "test-agent")

	contextLogger := structLogger.WithContext(ctx)
	contextLogger.Info("Test message with context", nil)

	output := buf.String()
	assert.Contains(t, output, "req-123")
	assert.Contains(t, output, "192.168.1.1")
	assert.Contains(t, output, "user_abc")
	assert.Contains(t, output, "test-agent")
}

func TestStructuredLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	structLogger := newBufferedLogger(&buf)

	child := structLogger.WithFields(map[string]interface{}{"sweep": "delete"})
	child.Info("child", nil)
	structLogger.Info("parent", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"sweep":"delete"`)
	assert.NotContains(t, lines[1], "sweep")
}

func TestContextWithRequestInfo(t *testing.T) {
	ctx := ContextWithRequestInfo(context.Background(), "req-456", "10.0.0.1", "", "Mozilla/5.0")

	assert.Equal(t, "req-456", GetRequestID(ctx))
	assert.Equal(t, "10.0.0.1", ctx.Value(IPKey))
	assert.Nil(t, ctx.Value(UserIDKey))
	assert.Equal(t, "Mozilla/5.0", ctx.Value(UserAgentKey))
	assert.Equal(t, "", GetRequestID(context.Background()))
}
