package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	assert.Empty(t, buf.String(), "messages below the level must be dropped")

	l.Warn("warn %d", 3)
	l.Error("error %d", 4)
	out := buf.String()
	assert.Contains(t, out, "warn 3")
	assert.Contains(t, out, "error 4")
	assert.Contains(t, out, `"component":"fsh"`)
}

func TestLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug).With("importer")

	l.Debug("Preprocessed %d documents with %d aliases.", 2, 3)
	assert.Contains(t, buf.String(), "Preprocessed 2 documents with 3 aliases.")
	assert.Contains(t, buf.String(), `"component":"importer"`)
}

func TestLoggerSetLevelNone(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug)
	l.SetLevel(LevelNone)

	l.Error("should not appear")
	assert.Empty(t, buf.String())
	assert.False(t, l.Enabled(LevelError))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"none", LevelNone},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
