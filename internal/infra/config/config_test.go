package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-exportbot/internal/infra/config"
)

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"BOT_TOKEN":         "123:abc",
		"ADMINS":            "1,2",
		"TELEGRAM_API_ID":   "42",
		"TELEGRAM_API_HASH": "hash",
		"TELETHON_SESSION":  "1AAAA",
	}
}

func TestFromLookupAdmins(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want []int64
	}{
		{name: "comma", raw: "1,2,3", want: []int64{1, 2, 3}},
		{name: "semicolon", raw: "10;20", want: []int64{10, 20}},
		{name: "mixedWithSpaces", raw: " 5 ; 6, 7 ,", want: []int64{5, 6, 7}},
		{name: "duplicates", raw: "9,9,8,9", want: []int64{9, 8}},
		{name: "negative", raw: "-100", want: []int64{-100}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			env := baseEnv()
			env["ADMINS"] = tc.raw
			cfg, err := config.FromLookup(mapLookup(env))
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg.Env().Admins)
		})
	}
}

func TestFromLookupFatal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(map[string]string)
		wantKey string
	}{
		{name: "noToken", mutate: func(m map[string]string) { delete(m, "BOT_TOKEN") }, wantKey: "BOT_TOKEN"},
		{name: "blankToken", mutate: func(m map[string]string) { m["BOT_TOKEN"] = "  " }, wantKey: "BOT_TOKEN"},
		{name: "badAdmin", mutate: func(m map[string]string) { m["ADMINS"] = "1,abc" }, wantKey: "ADMINS"},
		{name: "badAPIID", mutate: func(m map[string]string) { m["TELEGRAM_API_ID"] = "x1" }, wantKey: "TELEGRAM_API_ID"},
		{name: "badTimezone", mutate: func(m map[string]string) { m["APP_TIMEZONE"] = "+99" }, wantKey: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			env := baseEnv()
			tc.mutate(env)
			cfg, err := config.FromLookup(mapLookup(env))
			if tc.wantKey == "" {
				// невалидная зона не фатальна: дефолт + предупреждение
				require.NoError(t, err)
				assert.Equal(t, "UTC", cfg.Env().AppTimezone)
				assert.NotEmpty(t, cfg.Warnings())
				return
			}
			var cfgErr *config.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tc.wantKey, cfgErr.Key)
		})
	}
}

func TestFromLookupDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.FromLookup(mapLookup(map[string]string{"BOT_TOKEN": "t"}))
	require.NoError(t, err)

	env := cfg.Env()
	assert.Empty(t, env.Admins)
	assert.False(t, env.SessionConfigured())
	assert.Equal(t, "info", env.LogLevel)
	assert.Equal(t, 2, env.SessionRPS)
	assert.Equal(t, 20, env.BotRPS)
	assert.True(t, env.Aggressive)
	assert.False(t, env.ExportKeepFiles)
	assert.Equal(t, 24*time.Hour, env.ExportRetention)
	assert.Equal(t, "@every 1h", env.ExportCleanupCron)
	assert.Equal(t, "data/peers_cache.bbolt", env.PeersCacheFile)
	assert.Equal(t, filepath.Clean(os.TempDir()), env.ExportDir)

	warnings := cfg.Warnings()
	assert.Contains(t, warnings, "env ADMINS is empty; nobody will receive exports")
	assert.Len(t, warnings, 3)
}

func TestFromLookupInvalidValuesFallBack(t *testing.T) {
	t.Parallel()

	env := baseEnv()
	env["SESSION_RPS"] = "0"
	env["BOT_RPS"] = "fast"
	env["LOG_LEVEL"] = "verbose"
	env["EXPORT_KEEP_FILES"] = "maybe"
	env["AGGRESSIVE_PARTICIPANTS"] = "false"

	cfg, err := config.FromLookup(mapLookup(env))
	require.NoError(t, err)

	got := cfg.Env()
	assert.Equal(t, 2, got.SessionRPS)
	assert.Equal(t, 20, got.BotRPS)
	assert.Equal(t, "info", got.LogLevel)
	assert.False(t, got.ExportKeepFiles)
	assert.False(t, got.Aggressive)
	assert.True(t, got.SessionConfigured())
	assert.Len(t, cfg.Warnings(), 4)
}

func TestEnvReturnsCopy(t *testing.T) {
	t.Parallel()

	cfg, err := config.FromLookup(mapLookup(baseEnv()))
	require.NoError(t, err)

	env := cfg.Env()
	env.Admins[0] = 999
	assert.Equal(t, int64(1), cfg.Env().Admins[0])
}

func TestLoadMissingFileWarns(t *testing.T) {
	t.Setenv("BOT_TOKEN", "file-less")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "file-less", cfg.Env().BotToken)
	require.NotEmpty(t, cfg.Warnings())
	assert.Contains(t, cfg.Warnings()[0], "not found")
}

func TestAPIFromLookup(t *testing.T) {
	t.Parallel()

	creds, err := config.APIFromLookup(mapLookup(map[string]string{
		"TELEGRAM_API_ID":   "42",
		"TELEGRAM_API_HASH": "hash",
		"TEST_DC":           "true",
	}))
	require.NoError(t, err)
	assert.Equal(t, config.APICredentials{APIID: 42, APIHash: "hash", TestDC: true}, creds)

	_, err = config.APIFromLookup(mapLookup(map[string]string{"TELEGRAM_API_ID": "-1"}))
	var cfgErr *config.ConfigError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, "TELEGRAM_API_ID", cfgErr.Key)
}
