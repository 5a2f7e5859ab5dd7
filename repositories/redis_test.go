package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"styx-chat/domain/chat"
	"styx-chat/errors"
)

// redisTestClient connects to the Redis instance named by REDIS_ADDR and
// skips the test when none is configured.
func redisTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client, err := NewRedisClient(context.Background(), addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func uniqueRoomID(t *testing.T) string {
	return fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())
}

func Test_Redis_Store_And_Recent(t *testing.T) {
	req := require.New(t)
	store := NewRedisMessageStore(redisTestClient(t), slog.Default(), 100)
	roomID := uniqueRoomID(t)
	defer store.DeleteRoom(context.Background(), roomID)

	at := time.Now().UTC()
	for i, content := range []string{"one", "two", "three"} {
		_, err := store.Store(context.Background(),
			newTestMessage(roomID, "alice", "Alice", content, at.Add(time.Duration(i)*time.Second)))
		req.NoError(err)
	}

	fetched, err := store.Recent(context.Background(), roomID, 2)
	req.NoError(err)
	req.Len(fetched, 2)
	req.Equal("two", fetched[0].Content)
	req.Equal("three", fetched[1].Content)
}

func Test_Redis_Same_Timestamp_Order(t *testing.T) {
	req := require.New(t)
	store := NewRedisMessageStore(redisTestClient(t), slog.Default(), 100)
	roomID := uniqueRoomID(t)
	defer store.DeleteRoom(context.Background(), roomID)

	at := time.Now().UTC()
	for _, content := range []string{"first", "second", "third"} {
		_, err := store.Store(context.Background(),
			newTestMessage(roomID, "alice", "Alice", content, at))
		req.NoError(err)
	}

	fetched, err := store.Recent(context.Background(), roomID, 0)
	req.NoError(err)
	req.Len(fetched, 3)
	req.Equal("first", fetched[0].Content)
	req.Equal("third", fetched[2].Content)
}

func Test_Redis_Cap_Evicts_Oldest(t *testing.T) {
	req := require.New(t)
	store := NewRedisMessageStore(redisTestClient(t), slog.Default(), 2)
	roomID := uniqueRoomID(t)
	defer store.DeleteRoom(context.Background(), roomID)

	at := time.Now().UTC()
	first, err := store.Store(context.Background(), newTestMessage(roomID, "alice", "Alice", "old", at))
	req.NoError(err)
	for i := 1; i <= 2; i++ {
		_, err := store.Store(context.Background(),
			newTestMessage(roomID, "alice", "Alice", "new", at.Add(time.Duration(i)*time.Second)))
		req.NoError(err)
	}

	fetched, err := store.Recent(context.Background(), roomID, 0)
	req.NoError(err)
	req.Len(fetched, 2)

	_, err = store.ByID(context.Background(), first.ID)
	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func Test_Redis_Delete_Message(t *testing.T) {
	req := require.New(t)
	store := NewRedisMessageStore(redisTestClient(t), slog.Default(), 100)
	roomID := uniqueRoomID(t)
	defer store.DeleteRoom(context.Background(), roomID)

	stored, err := store.Store(context.Background(),
		newTestMessage(roomID, "alice", "Alice", "bye", time.Now().UTC()))
	req.NoError(err)

	req.ErrorIs(store.Delete(context.Background(), stored.ID, "elsewhere"), errors.ErrMessageNotFound)
	req.NoError(store.Delete(context.Background(), stored.ID, roomID))
	_, err = store.ByID(context.Background(), stored.ID)
	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func Test_Redis_Room_Lifecycle(t *testing.T) {
	req := require.New(t)
	store := NewRedisRoomStore(redisTestClient(t), slog.Default())
	roomID := uniqueRoomID(t)

	room := chat.Room{ID: roomID, Name: "Redis Room", CreatedAt: time.Now().UTC()}
	req.NoError(store.Create(context.Background(), room))
	defer store.Delete(context.Background(), roomID)
	req.ErrorIs(store.Create(context.Background(), room), errors.ErrRoomExists)

	fetched, err := store.Get(context.Background(), roomID)
	req.NoError(err)
	req.Equal("Redis Room", fetched.Name)

	fetched.AIEnabled = true
	req.NoError(store.Update(context.Background(), fetched))
	updated, err := store.Get(context.Background(), roomID)
	req.NoError(err)
	req.True(updated.AIEnabled)

	req.NoError(store.Delete(context.Background(), roomID))
	_, err = store.Get(context.Background(), roomID)
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func Test_Redis_Presence_Mirror(t *testing.T) {
	req := require.New(t)
	presence := NewRedisPresence(redisTestClient(t), slog.Default())
	roomID := uniqueRoomID(t)

	req.NoError(presence.UserJoined(context.Background(), "alice", roomID))
	req.NoError(presence.UserJoined(context.Background(), "bob", roomID))

	online, err := presence.Online(context.Background(), roomID)
	req.NoError(err)
	req.ElementsMatch([]string{"alice", "bob"}, online)

	req.NoError(presence.UserLeft(context.Background(), "alice", roomID))
	online, err = presence.Online(context.Background(), roomID)
	req.NoError(err)
	req.ElementsMatch([]string{"bob"}, online)

	req.NoError(presence.UserLeft(context.Background(), "bob", roomID))
}
