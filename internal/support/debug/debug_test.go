package debug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"telegram-exportbot/internal/infra/logger"
	"telegram-exportbot/internal/support/debug"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "short", in: "hello", limit: 10, want: "hello"},
		{name: "exact", in: "hello", limit: 5, want: "hello"},
		{name: "ascii", in: "hello world", limit: 5, want: "hello..."},
		{name: "cyrillic", in: "привет мир", limit: 6, want: "привет..."},
		{name: "no limit", in: "hello", limit: 0, want: "hello"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, debug.Truncate(tc.in, tc.limit))
		})
	}
}

// Не параллельный: подменяет глобальный логгер.
func TestDumpRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := logger.Replace(zap.New(core))
	debug.Dump("Skipped update", struct{ ID int }{ID: 7})
	debug.Message("bot", 1, 2, "hi")
	restore()
	assert.Zero(t, logs.Len())

	core, logs = observer.New(zapcore.DebugLevel)
	restore = logger.Replace(zap.New(core))
	defer restore()

	debug.Dump("Skipped update", struct{ ID int }{ID: 7})
	debug.Message("bot", 1, 2, "hi")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Skipped update", entries[0].Message)
	dump, _ := entries[0].ContextMap()["dump"].(string)
	assert.Contains(t, dump, "ID:")
	assert.Contains(t, dump, "7")
	assert.Equal(t, "[bot] 1 > 2: hi", entries[1].Message)
}
