package main

import (
	"testing"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func Test_Config_Parses_With_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("AUTH_SECRET", "test-secret")

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)
	req.NoError(err)

	req.Equal("*", config.CensorReplacement)
	replacement, err := CharacterRune(config.CensorReplacement)
	req.NoError(err)
	req.Equal('*', replacement)

	req.Equal(8000, config.Port)
	req.Equal("badger", config.StorageBackend)
	req.Equal("general", config.DefaultRoomID)
}

func Test_CharacterRune_Accepts_Single_Rune_Only(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)

	r, err = CharacterRune("█")
	req.NoError(err)
	req.Equal('█', r)

	_, err = CharacterRune("")
	req.Error(err)
	_, err = CharacterRune("**")
	req.Error(err)
}
