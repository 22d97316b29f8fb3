package config

import (
	"io"
	"testing"

	"github.com/jason-s-yu/wizard/internal/cache"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("WIZARD_PORT", "5555")
	t.Setenv("WIZARD_PLAYERS", "4")
	t.Setenv("WIZARD_SEED", "17")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("WIZARD_DEBUG", "true")

	cfg := FromEnv()
	assert.Equal(t, 5555, cfg.Port)
	assert.Equal(t, 4, cfg.Players)
	assert.Equal(t, int64(17), cfg.Seed)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "identity", cfg.Handshake)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB, "unparsable values fall back to the default")
	assert.Equal(t, cache.DefaultQueueName, cfg.Redis.Queue)
	assert.Equal(t, int64(cache.DefaultMaxLen), cfg.Redis.MaxLen)
}

func TestParseFlagsOverrideEnv(t *testing.T) {
	base := Config{Port: 1000, Players: 3, Handshake: "identity"}
	cfg, err := Parse([]string{"--port", "6000", "--players", "5", "--rounds", "4", "-v", "-v", "--handshake", "affine", "--seed", "9"}, base, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Port)
	assert.Equal(t, 5, cfg.Players)
	assert.Equal(t, 4, cfg.Rounds)
	assert.Equal(t, 2, cfg.Verbosity)
	assert.Equal(t, "affine", cfg.Handshake)
	assert.Equal(t, int64(9), cfg.Seed)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel())

	cfg, err = Parse(nil, base, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Port, "env value used when no flag is given")
	assert.Equal(t, logrus.WarnLevel, cfg.LogLevel())

	cfg, err = Parse([]string{"--debug"}, base, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel())
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	cases := map[string][]string{
		"missing port":      {"--players", "4"},
		"missing players":   {"--port", "5555"},
		"too many players":  {"--port", "5555", "--players", "9"},
		"negative rounds":   {"--port", "5555", "--players", "4", "--rounds", "-2"},
		"unknown handshake": {"--port", "5555", "--players", "4", "--handshake", "xor"},
		"same ports":        {"--port", "5555", "--players", "4", "--ws-port", "5555"},
		"unknown flag":      {"--port", "5555", "--players", "4", "--colour"},
	}
	for name, args := range cases {
		_, err := Parse(args, Config{Handshake: "identity"}, io.Discard)
		assert.Error(t, err, name)
	}
}
