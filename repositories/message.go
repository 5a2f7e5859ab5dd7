package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"styx-chat/domain/chat"
	"styx-chat/errors"
)

// BadgerMessageStore persists room messages in BadgerDB.
// The primary key is "msg:{room_id}:{timestamp_padded}:{seq_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Keep insertion order stable when two messages land on the same nanosecond,
//     using a process-wide sequence number as tie breaker.
//
// A secondary index "msgid:{uuid}" maps a message ID back to its primary key
// so point lookups and deletes do not need a room scan.
type BadgerMessageStore struct {
	db  *badger.DB
	log *slog.Logger
	cap int
	seq atomic.Uint64
}

func NewBadgerMessageStore(db *badger.DB, log *slog.Logger, cap int) *BadgerMessageStore {
	return &BadgerMessageStore{db: db, log: log, cap: cap}
}

func (s *BadgerMessageStore) Store(_ context.Context, message chat.Message) (chat.Message, error) {
	message.Seq = s.seq.Add(1)
	key := messageKey(message.RoomID, message)
	bytes, err := json.Marshal(message)
	if err != nil {
		return chat.Message{}, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		if err := txn.Set(messageIDKey(message.ID), key); err != nil {
			return err
		}
		return s.trim(txn, message.RoomID)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// Recent returns up to limit messages for a room in chronological order,
// keeping the newest ones when the room holds more than limit.
func (s *BadgerMessageStore) Recent(_ context.Context, roomID string, limit int) ([]chat.Message, error) {
	var messages []chat.Message
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", roomID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible timestamp, then walk backwards.
		it.Seek(append(prefix, []byte("9999999999999999999")...))
		for ; it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			var message chat.Message
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &message)
			})
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *BadgerMessageStore) ByID(_ context.Context, id uuid.UUID) (chat.Message, error) {
	var message chat.Message
	err := s.db.View(func(txn *badger.Txn) error {
		key, err := resolveMessageKey(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("message %s: %w", id, errors.ErrMessageNotFound)
			}
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &message)
		})
	})
	if err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

func (s *BadgerMessageStore) Delete(_ context.Context, id uuid.UUID, roomID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key, err := resolveMessageKey(txn, id)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(string(key), fmt.Sprintf("msg:%s:", roomID)) {
			return fmt.Errorf("message %s not in room %s: %w", id, roomID, errors.ErrMessageNotFound)
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(messageIDKey(id))
	})
}

// DeleteRoom removes every message of a room and returns the deleted
// message IDs so callers can purge secondary stores such as the search index.
func (s *BadgerMessageStore) DeleteRoom(_ context.Context, roomID string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", roomID))
		var keys [][]byte
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			id, err := messageIDFromKey(key)
			if err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Delete(messageIDKey(id)); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("room messages deleted", "room_id", roomID, "count", len(ids))
	return ids, nil
}

// trim drops the oldest messages of a room once it exceeds the configured cap.
func (s *BadgerMessageStore) trim(txn *badger.Txn, roomID string) error {
	if s.cap <= 0 {
		return nil
	}
	prefix := []byte(fmt.Sprintf("msg:%s:", roomID))
	var keys [][]byte
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	if len(keys) <= s.cap {
		return nil
	}
	for _, key := range keys[:len(keys)-s.cap] {
		id, err := messageIDFromKey(key)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		if err := txn.Delete(messageIDKey(id)); err != nil {
			return err
		}
	}
	return nil
}

func messageKey(roomID string, message chat.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%012d:%s",
		roomID,
		message.CreatedAt.UnixNano(),
		message.Seq,
		message.ID,
	))
}

func messageIDKey(id uuid.UUID) []byte {
	return []byte("msgid:" + id.String())
}

// messageIDFromKey parses the trailing UUID segment out of a primary key.
func messageIDFromKey(key []byte) (uuid.UUID, error) {
	parts := strings.Split(string(key), ":")
	return uuid.Parse(parts[len(parts)-1])
}

func resolveMessageKey(txn *badger.Txn, id uuid.UUID) ([]byte, error) {
	item, err := txn.Get(messageIDKey(id))
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("message %s: %w", id, errors.ErrMessageNotFound)
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

