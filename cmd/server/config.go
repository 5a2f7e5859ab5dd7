package main

import (
	"fmt"
	"time"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8000"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	// Storage backend is badger unless redis is explicitly selected;
	// REDIS_ADDR alone only enables the shared presence mirror.
	StorageBackend string `env:"STORAGE_BACKEND,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/badger"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,default=./data/bluge"`
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB,default=0"`

	MaxChatHistory       int           `env:"MAX_CHAT_HISTORY,default=100"`
	HistoryReplay        int           `env:"HISTORY_REPLAY,default=50"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=5s"`

	AIModelURL        string        `env:"AI_MODEL_URL,default=http://localhost:1234"`
	AIAPIKey          string        `env:"AI_API_KEY"`
	AIModel           string        `env:"AI_MODEL"`
	AIContextMessages int           `env:"AI_CONTEXT_MESSAGES,default=10"`
	AIResponseTimeout time.Duration `env:"AI_RESPONSE_TIMEOUT,default=30s"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	DefaultRoomID     string        `env:"DEFAULT_ROOM_ID,default=general"`
	DefaultRoomName   string        `env:"DEFAULT_ROOM_NAME,default=General"`
	CensorReplacement string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
	StatsInterval     time.Duration `env:"STATS_INTERVAL,default=30s"`
}

// CharacterRune converts the censor replacement setting to the single rune
// the moderator works with.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q", str)
	}
	return r[0], nil
}
