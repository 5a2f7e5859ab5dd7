package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SERVER_ADDR points at a running relay, e.g. localhost:8000. The
	// suite skips itself when unset.
	ServerAddr string `envconfig:"SERVER_ADDR"`
	AuthSecret string `envconfig:"AUTH_SECRET" default:"test-secret"`
	RoomID     string `envconfig:"E2E_ROOM_ID" default:"general"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
