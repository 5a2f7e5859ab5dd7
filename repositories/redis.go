package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"styx-chat/domain/chat"
	"styx-chat/errors"
)

const (
	redisMessagesPrefix = "chat:messages:" // sorted set per room
	redisMessagePrefix  = "chat:message:"  // message id -> sorted set member
	redisRoomPrefix     = "chat:room:"     // room id -> json record
	redisRoomsKey       = "chat:rooms"     // set of room ids
	redisPresencePrefix = "chat:presence:" // set of online user ids per room
	redisStatusPrefix   = "chat:user:status:"
)

// NewRedisClient dials Redis and verifies the connection before handing
// the client out.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// RedisMessageStore keeps each room's history in a sorted set scored by the
// message timestamp. The member embeds "{timestamp_padded}:{seq_padded}:{json}"
// so that two messages sharing a nanosecond still sort by insertion order,
// Redis breaking score ties lexicographically on the member.
type RedisMessageStore struct {
	client *redis.Client
	log    *slog.Logger
	cap    int
	seq    atomic.Uint64
}

func NewRedisMessageStore(client *redis.Client, log *slog.Logger, cap int) *RedisMessageStore {
	return &RedisMessageStore{client: client, log: log, cap: cap}
}

func (s *RedisMessageStore) Store(ctx context.Context, message chat.Message) (chat.Message, error) {
	message.Seq = s.seq.Add(1)
	bytes, err := json.Marshal(message)
	if err != nil {
		return chat.Message{}, err
	}
	member := fmt.Sprintf("%019d:%012d:%s", message.CreatedAt.UnixNano(), message.Seq, bytes)
	key := redisMessagesPrefix + message.RoomID

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(message.CreatedAt.UnixNano()), Member: member})
	pipe.Set(ctx, redisMessagePrefix+message.ID.String(), member, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return chat.Message{}, err
	}
	if err := s.trim(ctx, key); err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

func (s *RedisMessageStore) Recent(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	key := redisMessagesPrefix + roomID
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	members, err := s.client.ZRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, err
	}
	messages := make([]chat.Message, 0, len(members))
	for _, member := range members {
		message, err := parseMember(member)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (s *RedisMessageStore) ByID(ctx context.Context, id uuid.UUID) (chat.Message, error) {
	member, err := s.client.Get(ctx, redisMessagePrefix+id.String()).Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return chat.Message{}, fmt.Errorf("message %s: %w", id, errors.ErrMessageNotFound)
		}
		return chat.Message{}, err
	}
	return parseMember(member)
}

func (s *RedisMessageStore) Delete(ctx context.Context, id uuid.UUID, roomID string) error {
	message, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	if message.RoomID != roomID {
		return fmt.Errorf("message %s not in room %s: %w", id, roomID, errors.ErrMessageNotFound)
	}
	member, err := s.client.Get(ctx, redisMessagePrefix+id.String()).Result()
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, redisMessagesPrefix+roomID, member)
	pipe.Del(ctx, redisMessagePrefix+id.String())
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisMessageStore) DeleteRoom(ctx context.Context, roomID string) ([]uuid.UUID, error) {
	key := redisMessagesPrefix + roomID
	members, err := s.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	pipe := s.client.TxPipeline()
	var ids []uuid.UUID
	for _, member := range members {
		message, err := parseMember(member)
		if err != nil {
			return nil, err
		}
		ids = append(ids, message.ID)
		pipe.Del(ctx, redisMessagePrefix+message.ID.String())
	}
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// trim evicts the oldest members once the room exceeds its cap, cleaning up
// the per-message lookup keys as it goes.
func (s *RedisMessageStore) trim(ctx context.Context, key string) error {
	if s.cap <= 0 {
		return nil
	}
	count, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return err
	}
	if count <= int64(s.cap) {
		return nil
	}
	overflow, err := s.client.ZRange(ctx, key, 0, count-int64(s.cap)-1).Result()
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	for _, member := range overflow {
		message, err := parseMember(member)
		if err != nil {
			return err
		}
		pipe.ZRem(ctx, key, member)
		pipe.Del(ctx, redisMessagePrefix+message.ID.String())
	}
	_, err = pipe.Exec(ctx)
	return err
}

func parseMember(member string) (chat.Message, error) {
	parts := strings.SplitN(member, ":", 3)
	if len(parts) != 3 {
		return chat.Message{}, fmt.Errorf("malformed history member %q", member)
	}
	var message chat.Message
	if err := json.Unmarshal([]byte(parts[2]), &message); err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// RedisRoomStore persists room records as JSON strings with a companion set
// of ids for listing.
type RedisRoomStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisRoomStore(client *redis.Client, log *slog.Logger) *RedisRoomStore {
	return &RedisRoomStore{client: client, log: log}
}

func (s *RedisRoomStore) Create(ctx context.Context, room chat.Room) error {
	bytes, err := json.Marshal(room)
	if err != nil {
		return err
	}
	created, err := s.client.SetNX(ctx, redisRoomPrefix+room.ID, bytes, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("room %s: %w", room.ID, errors.ErrRoomExists)
	}
	return s.client.SAdd(ctx, redisRoomsKey, room.ID).Err()
}

func (s *RedisRoomStore) Get(ctx context.Context, id string) (chat.Room, error) {
	bytes, err := s.client.Get(ctx, redisRoomPrefix+id).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return chat.Room{}, fmt.Errorf("room %s: %w", id, errors.ErrRoomNotFound)
		}
		return chat.Room{}, err
	}
	var room chat.Room
	if err := json.Unmarshal(bytes, &room); err != nil {
		return chat.Room{}, err
	}
	return room, nil
}

func (s *RedisRoomStore) Update(ctx context.Context, room chat.Room) error {
	if _, err := s.Get(ctx, room.ID); err != nil {
		return err
	}
	bytes, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisRoomPrefix+room.ID, bytes, 0).Err()
}

func (s *RedisRoomStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisRoomPrefix+id)
	pipe.SRem(ctx, redisRoomsKey, id)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisRoomStore) List(ctx context.Context) ([]chat.Room, error) {
	ids, err := s.client.SMembers(ctx, redisRoomsKey).Result()
	if err != nil {
		return nil, err
	}
	var rooms []chat.Room
	for _, id := range ids {
		room, err := s.Get(ctx, id)
		if err != nil {
			if stderrors.Is(err, errors.ErrRoomNotFound) {
				continue
			}
			return nil, err
		}
		rooms = append(rooms, room)
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// RedisPresence mirrors live room membership into Redis sets alongside a
// per-user status hash, so dashboards and bots outside the process can see
// who is online. Failures are logged and swallowed; the in-memory registry
// remains authoritative.
type RedisPresence struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisPresence(client *redis.Client, log *slog.Logger) *RedisPresence {
	return &RedisPresence{client: client, log: log}
}

func (p *RedisPresence) UserJoined(ctx context.Context, userID, roomID string) error {
	pipe := p.client.TxPipeline()
	pipe.SAdd(ctx, redisPresencePrefix+roomID, userID)
	pipe.HSet(ctx, redisStatusPrefix+userID,
		"room_id", roomID,
		"online", "1",
		"last_seen", time.Now().UTC().Format(time.RFC3339),
	)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *RedisPresence) UserLeft(ctx context.Context, userID, roomID string) error {
	pipe := p.client.TxPipeline()
	pipe.SRem(ctx, redisPresencePrefix+roomID, userID)
	pipe.HSet(ctx, redisStatusPrefix+userID,
		"online", "0",
		"last_seen", time.Now().UTC().Format(time.RFC3339),
	)
	_, err := pipe.Exec(ctx)
	return err
}

// Online lists the user ids currently mirrored as present in a room.
func (p *RedisPresence) Online(ctx context.Context, roomID string) ([]string, error) {
	return p.client.SMembers(ctx, redisPresencePrefix+roomID).Result()
}
