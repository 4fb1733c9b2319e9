// Package peercache — персистентный кеш access_hash каналов на bbolt поверх
// gotd/contrib PeerStorage. Нужен, чтобы числовой id канала (из my_chat_member
// или t.me/c/<id>) разрешался без полного обхода диалогов пользовательской сессии.
package peercache

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	bboltdb "github.com/gotd/contrib/bbolt"
	contribstorage "github.com/gotd/contrib/storage"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
	"go.etcd.io/bbolt"

	"telegram-exportbot/internal/infra/storage"
)

const (
	dbOpenTimeout             = time.Second
	dbFileMode    os.FileMode = 0o600
)

var peersBucket = []byte("peers")

// Cache хранит каналы, встреченные при разрешении. bbolt безопасен для
// конкурентного использования, поэтому Cache разделяется между выгрузками.
type Cache struct {
	db    *bbolt.DB
	store contribstorage.PeerStorage
}

// Open открывает (или создаёт) файл кеша.
func Open(path string) (*Cache, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("peercache: db path is empty")
	}
	if err := storage.EnsureParent(path); err != nil {
		return nil, errors.Wrap(err, "peercache")
	}
	db, err := bbolt.Open(path, dbFileMode, &bbolt.Options{Timeout: dbOpenTimeout})
	if err != nil {
		return nil, errors.Wrap(err, "peercache: open db")
	}
	return &Cache{
		db:    db,
		store: bboltdb.NewPeerStorage(db, peersBucket),
	}, nil
}

// Close закрывает файл базы данных.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Remember сохраняет канал. min-каналы (без полноценного access_hash) пропускаются.
// В кеш идёт урезанная копия: интерфейсные поля tg.Channel (фото, права) не
// переживают JSON-кодирование хранилища.
func (c *Cache) Remember(ctx context.Context, ch *tg.Channel) error {
	if ch == nil || ch.Min {
		return nil
	}
	slim := &tg.Channel{
		ID:         ch.ID,
		AccessHash: ch.AccessHash,
		Title:      ch.Title,
		Username:   ch.Username,
		Broadcast:  ch.Broadcast,
		Megagroup:  ch.Megagroup,
	}
	var p contribstorage.Peer
	if !p.FromChat(slim) {
		return nil
	}
	if err := c.store.Add(ctx, p); err != nil {
		return errors.Wrapf(err, "peercache: add channel %d", ch.ID)
	}
	return nil
}

// Lookup возвращает сохранённый канал; ok=false, если его нет в кеше.
func (c *Cache) Lookup(ctx context.Context, channelID int64) (*tg.Channel, bool, error) {
	p, err := c.store.Find(ctx, contribstorage.PeerKey{Kind: dialogs.Channel, ID: channelID})
	if errors.Is(err, contribstorage.ErrPeerNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "peercache: find channel %d", channelID)
	}
	if p.Channel != nil {
		return p.Channel, true, nil
	}
	// старые записи могли сохранить только ключ
	return &tg.Channel{ID: p.Key.ID, AccessHash: p.Key.AccessHash}, true, nil
}
