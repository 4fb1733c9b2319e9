// Package session переводит строку сессии Telethon (TELETHON_SESSION) в хранилище
// gotd и обратно.
//
// Формат строки: '1' + base64url( dc:1 | ip:4 или 16 | port:2 BE | auth_key:256 ).
// Декодирование делает сам gotd (session.TelethonSession); кодирование нужно
// утилите генерации сессии, которая логинится через gotd и печатает строку,
// совместимую с Telethon.
package session

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	tdsession "github.com/gotd/td/session"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
)

const (
	stringSessionVersion = '1'
	authKeySize          = 256
)

// Decode разбирает строку Telethon в данные сессии gotd.
func Decode(s string) (*tdsession.Data, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty session string")
	}
	data, err := tdsession.TelethonSession(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode telethon session")
	}
	return data, nil
}

// NewMemoryStorage декодирует строку и кладёт сессию в in-memory хранилище gotd.
// Хранилище живёт столько же, сколько клиент: обновлённые ключи на диск не пишутся.
func NewMemoryStorage(ctx context.Context, s string) (*tdsession.StorageMemory, error) {
	data, err := Decode(s)
	if err != nil {
		return nil, err
	}
	storage := new(tdsession.StorageMemory)
	loader := tdsession.Loader{Storage: storage}
	if err := loader.Save(ctx, data); err != nil {
		return nil, errors.Wrap(err, "save session to memory")
	}
	return storage, nil
}

// Export читает сессию из storage и кодирует её в строку Telethon.
func Export(ctx context.Context, storage tdsession.Storage) (string, error) {
	loader := tdsession.Loader{Storage: storage}
	data, err := loader.Load(ctx)
	if err != nil {
		return "", errors.Wrap(err, "load session")
	}
	return Encode(data)
}

// Encode кодирует данные сессии gotd в строку Telethon. Если в данных нет адреса,
// он берётся из конфигурации DC в сессии, а затем из встроенного списка продовых DC.
func Encode(data *tdsession.Data) (string, error) {
	if data == nil {
		return "", errors.New("nil session data")
	}
	if len(data.AuthKey) != authKeySize {
		return "", errors.Errorf("auth key must be %d bytes, got %d", authKeySize, len(data.AuthKey))
	}
	if data.DC <= 0 || data.DC > 255 {
		return "", errors.Errorf("invalid dc id %d", data.DC)
	}

	addr, err := dcAddress(data)
	if err != nil {
		return "", err
	}

	ip := addr.Addr().Unmap()
	raw := make([]byte, 0, 1+16+2+authKeySize)
	raw = append(raw, byte(data.DC))
	raw = append(raw, ip.AsSlice()...)
	raw = binary.BigEndian.AppendUint16(raw, addr.Port())
	raw = append(raw, data.AuthKey...)

	return string(stringSessionVersion) + base64.URLEncoding.EncodeToString(raw), nil
}

func dcAddress(data *tdsession.Data) (netip.AddrPort, error) {
	if data.Addr != "" {
		host, port, err := net.SplitHostPort(data.Addr)
		if err == nil {
			if ap, ok := parseAddrPort(host, port); ok {
				return ap, nil
			}
		}
	}
	for _, list := range [][]tg.DCOption{data.Config.DCOptions, dcs.Prod().Options} {
		if ap, ok := findDCOption(list, data.DC); ok {
			return ap, nil
		}
	}
	return netip.AddrPort{}, errors.Errorf("no address for dc %d", data.DC)
}

func findDCOption(options []tg.DCOption, dc int) (netip.AddrPort, bool) {
	for _, opt := range options {
		if opt.ID != dc || opt.Ipv6 || opt.MediaOnly || opt.CDN || opt.TCPObfuscatedOnly {
			continue
		}
		if ap, ok := parseAddrPort(opt.IPAddress, strconv.Itoa(opt.Port)); ok {
			return ap, true
		}
	}
	return netip.AddrPort{}, false
}

func parseAddrPort(host, port string) (netip.AddrPort, bool) {
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return netip.AddrPort{}, false
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(ip, uint16(p)), true
}
