// Пакет timeutil — разбор таймзон из конфигурации: IANA-имя или UTC-смещение.
package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// offsetRe покрывает +HH, -HH, +HHMM, -HHMM, +HH:MM, -HH:MM (после снятия префикса UTC/GMT).
var offsetRe = regexp.MustCompile(`^([+-])\s*(\d{1,2})(?::?(\d{2}))?$`)

// ParseLocation разбирает либо IANA-таймзону ("Europe/Moscow"), либо UTC-смещение
// ("+03:00", "-0700", "UTC+3", "GMT-04:30").
func ParseLocation(value string) (*time.Location, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, errors.New("empty timezone")
	}
	if loc, err := time.LoadLocation(v); err == nil {
		return loc, nil
	}
	if loc, ok := ParseUTCOffset(v); ok {
		return loc, nil
	}
	return nil, errors.Errorf("invalid timezone %q: not an IANA name or UTC offset", value)
}

// ParseUTCOffset возвращает фиксированную зону для строк-смещений; "Z", "UTC", "GMT" — нулевое смещение.
func ParseUTCOffset(value string) (*time.Location, bool) {
	v := strings.ToUpper(strings.TrimSpace(value))
	if v == "Z" || v == "UTC" || v == "GMT" {
		return time.FixedZone("UTC+00:00", 0), true
	}
	v = strings.TrimPrefix(v, "UTC")
	v = strings.TrimPrefix(v, "GMT")
	m := offsetRe.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return nil, false
	}

	hours, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, false
	}
	mins := 0
	if m[3] != "" {
		if mins, err = strconv.Atoi(m[3]); err != nil {
			return nil, false
		}
	}
	if hours > 14 || mins > 59 {
		return nil, false
	}

	sign := 1
	if m[1] == "-" {
		sign = -1
	}
	offset := sign * (hours*int(time.Hour/time.Second) + mins*int(time.Minute/time.Second))
	return time.FixedZone(fmt.Sprintf("UTC%+03d:%02d", sign*hours, mins), offset), true
}
