// Пакет config собирает конфигурацию бота-экспортёра:
//  1. читает переменные окружения из .env (через godotenv) поверх окружения процесса,
//  2. нормализует и валидирует значения, подставляя дефолты,
//  3. копит предупреждения о подставленных значениях для вывода на старте.
//
// Фатальные проблемы (нет BOT_TOKEN, битый список ADMINS, нечисловой API_ID)
// возвращаются как *ConfigError: без них процесс не стартует. Отсутствие учётных
// данных пользовательской сессии — только предупреждение: бот поднимается, а каждая
// попытка выгрузки завершается понятной ошибкой.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"telegram-exportbot/internal/infra/timeutil"
	"telegram-exportbot/internal/shared"
)

// EnvConfig — неизменяемый снимок настроек. Передаётся по значению в граф приложения.
type EnvConfig struct {
	BotToken string
	Admins   []int64

	// Пользовательская MTProto-сессия для перечисления участников.
	APIID           int
	APIHash         string
	TelethonSession string
	TestDC          bool
	SessionRPS      int
	Aggressive      bool
	PeersCacheFile  string

	BotRPS int

	// Файлы выгрузки и их уборка.
	ExportDir         string
	ExportKeepFiles   bool
	ExportRetention   time.Duration
	ExportCleanupCron string

	AppTimezone string
	Location    *time.Location

	LogLevel string
	// Файловое логирование
	LogFile           string
	LogFileLevel      string
	LogFileMaxSize    int
	LogFileMaxBackups int
	LogFileMaxAge     int
	LogFileCompress   bool
}

// SessionConfigured сообщает, хватает ли данных для открытия пользовательской сессии.
func (e EnvConfig) SessionConfigured() bool {
	return e.APIID != 0 && e.APIHash != "" && e.TelethonSession != ""
}

// Config хранит снимок окружения и предупреждения, накопленные при разборе.
type Config struct {
	env      EnvConfig
	warnings []string
}

// ConfigError — фатальная ошибка конфигурации: ключ и причина.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Значения по умолчанию.
const (
	defaultLogLevel          = "info"
	defaultSessionRPS        = 2
	defaultBotRPS            = 20
	defaultAggressive        = true
	defaultPeersCacheFile    = "data/peers_cache.bbolt"
	defaultExportKeepFiles   = false
	defaultRetentionHours    = 24
	defaultCleanupCron       = "@every 1h"
	defaultAppTimezone       = "UTC"
	defaultLogFileLevel      = "debug"
	defaultLogFileMaxSize    = 50
	defaultLogFileMaxBackups = 3
	defaultLogFileMaxAge     = 7
	defaultLogFileCompress   = true
)

// LookupFunc — источник значений окружения (os.LookupEnv или подмена в тестах).
type LookupFunc func(key string) (string, bool)

// Load читает envPath (если файл есть) в окружение процесса и разбирает конфигурацию.
// Отсутствующий .env — не ошибка: значения могут прийти из окружения контейнера.
func Load(envPath string) (*Config, error) {
	var preWarnings []string
	if strings.TrimSpace(envPath) != "" {
		if err := godotenv.Load(envPath); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, &ConfigError{Key: "env file", Err: errors.Wrapf(err, "load %s", envPath)}
			}
			appendWarningf(&preWarnings, "env file %s not found; using process environment", envPath)
		}
	}

	cfg, err := FromLookup(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	cfg.warnings = append(preWarnings, cfg.warnings...)
	return cfg, nil
}

// FromLookup разбирает конфигурацию из произвольного источника без побочных эффектов.
func FromLookup(lookup LookupFunc) (*Config, error) {
	r := reader{lookup: lookup}

	botToken := r.get("BOT_TOKEN")
	if botToken == "" {
		return nil, &ConfigError{Key: "BOT_TOKEN", Err: errors.New("must be set")}
	}

	admins, err := parseAdmins(r.get("ADMINS"))
	if err != nil {
		return nil, &ConfigError{Key: "ADMINS", Err: err}
	}
	if len(admins) == 0 {
		r.warnf("env ADMINS is empty; nobody will receive exports")
	}

	apiID, err := parseAPIID(r.get("TELEGRAM_API_ID"))
	if err != nil {
		return nil, err
	}
	apiHash := r.get("TELEGRAM_API_HASH")
	session := r.get("TELETHON_SESSION")
	if apiID == 0 || apiHash == "" || session == "" {
		r.warnf("env TELEGRAM_API_ID/TELEGRAM_API_HASH/TELETHON_SESSION are incomplete; scraping will fail until they are set")
	}

	exportDir := r.get("EXPORT_DIR")
	if exportDir == "" {
		exportDir = os.TempDir()
	}
	exportDir = filepath.Clean(exportDir)

	appTimezone := r.timezone("APP_TIMEZONE", defaultAppTimezone)
	loc, err := timeutil.ParseLocation(appTimezone)
	if err != nil {
		return nil, &ConfigError{Key: "APP_TIMEZONE", Err: err}
	}

	env := EnvConfig{
		BotToken:          botToken,
		Admins:            admins,
		APIID:             apiID,
		APIHash:           apiHash,
		TelethonSession:   session,
		TestDC:            r.boolDefault("TEST_DC", false, true),
		SessionRPS:        r.intDefault("SESSION_RPS", defaultSessionRPS, greaterThanZero),
		Aggressive:        r.boolDefault("AGGRESSIVE_PARTICIPANTS", defaultAggressive, false),
		PeersCacheFile:    r.fileDefault("PEERS_CACHE_FILE", defaultPeersCacheFile),
		BotRPS:            r.intDefault("BOT_RPS", defaultBotRPS, greaterThanZero),
		ExportDir:         exportDir,
		ExportKeepFiles:   r.boolDefault("EXPORT_KEEP_FILES", defaultExportKeepFiles, true),
		ExportRetention:   time.Duration(r.intDefault("EXPORT_RETENTION_HOURS", defaultRetentionHours, greaterThanZero)) * time.Hour,
		ExportCleanupCron: r.fileDefault("EXPORT_CLEANUP_INTERVAL", defaultCleanupCron),
		AppTimezone:       appTimezone,
		Location:          loc,
		LogLevel:          r.logLevel("LOG_LEVEL", defaultLogLevel),
		LogFile:           r.get("LOG_FILE"),
		LogFileLevel:      r.logLevel("LOG_FILE_LEVEL", defaultLogFileLevel),
		LogFileMaxSize:    r.intDefault("LOG_FILE_MAX_SIZE_MB", defaultLogFileMaxSize, greaterThanZero),
		LogFileMaxBackups: r.intDefault("LOG_FILE_MAX_BACKUPS", defaultLogFileMaxBackups, nonNegative),
		LogFileMaxAge:     r.intDefault("LOG_FILE_MAX_AGE_DAYS", defaultLogFileMaxAge, nonNegative),
		LogFileCompress:   r.boolDefault("LOG_FILE_COMPRESS", defaultLogFileCompress, true),
	}

	return &Config{env: env, warnings: r.warnings}, nil
}

// APICredentials — часть конфигурации, нужная утилите генерации сессии.
// BOT_TOKEN и ADMINS ей не нужны.
type APICredentials struct {
	APIID           int
	APIHash         string
	TestDC          bool
	TelethonSession string
}

// LoadAPI читает envPath (если файл есть) и разбирает только учётные данные MTProto.
func LoadAPI(envPath string) (APICredentials, error) {
	if strings.TrimSpace(envPath) != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return APICredentials{}, &ConfigError{Key: "env file", Err: errors.Wrapf(err, "load %s", envPath)}
		}
	}
	return APIFromLookup(os.LookupEnv)
}

// APIFromLookup разбирает учётные данные MTProto из произвольного источника.
func APIFromLookup(lookup LookupFunc) (APICredentials, error) {
	r := reader{lookup: lookup}
	apiID, err := parseAPIID(r.get("TELEGRAM_API_ID"))
	if err != nil {
		return APICredentials{}, err
	}
	return APICredentials{
		APIID:           apiID,
		APIHash:         r.get("TELEGRAM_API_HASH"),
		TestDC:          r.boolDefault("TEST_DC", false, true),
		TelethonSession: r.get("TELETHON_SESSION"),
	}, nil
}

// parseAPIID: пустое значение — 0 (не настроено), иначе положительное целое.
func parseAPIID(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, &ConfigError{Key: "TELEGRAM_API_ID", Err: errors.Errorf("%q is not a positive integer", raw)}
	}
	return id, nil
}

// Env возвращает снимок настроек. Срез Admins копируется.
func (c *Config) Env() EnvConfig {
	env := c.env
	env.Admins = append([]int64(nil), c.env.Admins...)
	return env
}

// Warnings возвращает копию накопленных предупреждений.
func (c *Config) Warnings() []string {
	out := make([]string, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// parseAdmins разбирает список id через запятую или точку с запятой.
// Пустые элементы пропускаются, повторы схлопываются с сохранением порядка.
func parseAdmins(raw string) ([]int64, error) {
	raw = strings.ReplaceAll(raw, ";", ",")
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return nil, errors.Errorf("entry %q is not an integer id", token)
		}
		ids = append(ids, id)
	}
	return shared.Unique(ids), nil
}

// reader оборачивает LookupFunc и копит предупреждения.
type reader struct {
	lookup   LookupFunc
	warnings []string
}

func (r *reader) get(name string) string {
	v, _ := r.lookup(name)
	return strings.TrimSpace(v)
}

func (r *reader) warnf(format string, args ...any) {
	appendWarningf(&r.warnings, format, args...)
}

// intDefault читает name как int. Пусто — тихий дефолт; некорректно или не проходит
// validator — дефолт с предупреждением.
func (r *reader) intDefault(name string, defaultVal int, validator func(int) bool) int {
	value := r.get(name)
	if value == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		r.warnf("env %s value %q is not a valid integer; using default %d", name, value, defaultVal)
		return defaultVal
	}
	if validator != nil && !validator(v) {
		r.warnf("env %s value %d does not satisfy constraints; using default %d", name, v, defaultVal)
		return defaultVal
	}
	return v
}

// boolDefault читает name как bool. quiet=false пишет предупреждение и о пустом значении.
func (r *reader) boolDefault(name string, defaultVal bool, quiet bool) bool {
	value := r.get(name)
	if value == "" {
		if !quiet {
			r.warnf("env %s is not set; using default %v", name, defaultVal)
		}
		return defaultVal
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		r.warnf("env %s value %q is not a valid boolean; using default %v", name, value, defaultVal)
		return defaultVal
	}
	return v
}

func (r *reader) fileDefault(name, fallback string) string {
	if v := r.get(name); v != "" {
		return v
	}
	return fallback
}

// logLevel ограничивает значения набором {debug, info, warn, error}.
func (r *reader) logLevel(name, defaultVal string) string {
	raw := r.get(name)
	lvl := strings.ToLower(raw)
	switch lvl {
	case "":
		return defaultVal
	case "debug", "info", "warn", "error":
		return lvl
	default:
		r.warnf("env %s value %q is invalid; using default %q", name, raw, defaultVal)
		return defaultVal
	}
}

// timezone проверяет IANA-зону или UTC-смещение; при ошибке — дефолт с предупреждением.
func (r *reader) timezone(name, fallback string) string {
	v := r.get(name)
	if v == "" {
		return fallback
	}
	if _, err := timeutil.ParseLocation(v); err != nil {
		r.warnf("env %s value %q is invalid; using default %q", name, v, fallback)
		return fallback
	}
	return v
}

func appendWarningf(warnings *[]string, format string, args ...any) {
	if warnings == nil {
		return
	}
	*warnings = append(*warnings, fmt.Sprintf(format, args...))
}

func greaterThanZero(v int) bool { return v > 0 }
func nonNegative(v int) bool     { return v >= 0 }
