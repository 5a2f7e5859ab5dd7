package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"styx-chat/domain/chat"
	"styx-chat/errors"
)

// BadgerRoomStore persists room records in BadgerDB under "room:{id}" keys.
type BadgerRoomStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerRoomStore(db *badger.DB, log *slog.Logger) *BadgerRoomStore {
	return &BadgerRoomStore{db: db, log: log}
}

func (s *BadgerRoomStore) Create(_ context.Context, room chat.Room) error {
	key := roomKey(room.ID)
	bytes, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return fmt.Errorf("room %s: %w", room.ID, errors.ErrRoomExists)
		case !stderrors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, bytes)
	})
}

func (s *BadgerRoomStore) Get(_ context.Context, id string) (chat.Room, error) {
	var room chat.Room
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(id))
		if err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("room %s: %w", id, errors.ErrRoomNotFound)
			}
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &room)
		})
	})
	if err != nil {
		return chat.Room{}, err
	}
	return room, nil
}

func (s *BadgerRoomStore) Update(_ context.Context, room chat.Room) error {
	key := roomKey(room.ID)
	bytes, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("room %s: %w", room.ID, errors.ErrRoomNotFound)
			}
			return err
		}
		return txn.Set(key, bytes)
	})
}

func (s *BadgerRoomStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(id)); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("room %s: %w", id, errors.ErrRoomNotFound)
			}
			return err
		}
		return txn.Delete(roomKey(id))
	})
}

// List returns every room sorted by creation time, newest first.
func (s *BadgerRoomStore) List(_ context.Context) ([]chat.Room, error) {
	var rooms []chat.Room
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var room chat.Room
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &room)
			})
			if err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func roomKey(id string) []byte {
	return []byte("room:" + id)
}
