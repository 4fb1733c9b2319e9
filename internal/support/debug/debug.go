// Package debug — вспомогательные утилиты для отладки бота.
// Печатает пропущенные апдейты и краткие строки о входящих сообщениях в общий лог,
// но только когда активен уровень DEBUG. Длинные тексты режутся по границе рун.

package debug

import (
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"telegram-exportbot/internal/infra/logger"
	"telegram-exportbot/internal/infra/pr"
)

const (
	// textMaxLen — предел длины текста сообщения в однострочном выводе.
	textMaxLen = 50
	// dumpMaxLen — предел длины pretty-дампа апдейта.
	dumpMaxLen = 4000
)

// Truncate обрезает строку до limit рун и добавляет "...". Режем по рунам,
// а не по байтам, чтобы не порвать UTF-8.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}

// Dump пишет pretty-представление значения (обычно сырого апдейта Bot API).
// Вне DEBUG ничего не форматирует.
func Dump(prefix string, v any) {
	if !logger.IsDebugEnabled() {
		return
	}
	logger.Debug(prefix, zap.String("dump", Truncate(pr.Pf(v), dumpMaxLen)))
}

// Message пишет одну строку о входящем сообщении:
// [prefix] <чат> > <автор>: <обрезанный текст>.
func Message(prefix string, chatID, fromID int64, text string) {
	if !logger.IsDebugEnabled() {
		return
	}
	logger.Debug(fmt.Sprintf("[%s] %d > %d: %s", prefix, chatID, fromID, Truncate(text, textMaxLen)))
}
