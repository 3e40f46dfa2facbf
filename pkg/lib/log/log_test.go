package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLazyLogger_UsesCurrentOutput(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(slog.LevelDebug)
	t.Cleanup(func() { SetLevel(slog.LevelInfo) })

	l := Logger("dht/test")
	l.Debug("hello", "k", 1)

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "component=dht/test")
	assert.Contains(t, out, "k=1")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", TruncateID("abc", 8))
	assert.Equal(t, "abcdefgh", TruncateID("abcdefghijk", 8))
}
