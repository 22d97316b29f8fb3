// internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jason-s-yu/wizard/internal/cache"
	"github.com/jason-s-yu/wizard/internal/game"
	"github.com/jason-s-yu/wizard/internal/session"
	"github.com/sirupsen/logrus"
)

// Config is the resolved server configuration.
type Config struct {
	Port      int    // TCP line protocol port
	WSPort    int    // WebSocket gateway port; 0 disables the gateway
	Players   int    // seats per match
	Rounds    int    // 0 selects the derived maximum
	Verbosity int    // number of -v flags
	Debug     bool   // debug logging
	Seed      int64  // 0 seeds from the clock
	Handshake string // "identity" or "affine"

	Redis cache.Options // journal; empty Addr disables it
}

// FromEnv reads WIZARD_* and REDIS_* variables. Flags parsed by Parse override them.
func FromEnv() Config {
	return Config{
		Port:      getEnvInt("WIZARD_PORT", 0),
		WSPort:    getEnvInt("WIZARD_WS_PORT", 0),
		Players:   getEnvInt("WIZARD_PLAYERS", 0),
		Rounds:    getEnvInt("WIZARD_ROUNDS", 0),
		Verbosity: getEnvInt("WIZARD_VERBOSITY", 0),
		Debug:     getEnvBool("WIZARD_DEBUG", false),
		Seed:      int64(getEnvInt("WIZARD_SEED", 0)),
		Handshake: getEnv("WIZARD_HANDSHAKE", "identity"),
		Redis: cache.Options{
			Addr:     getEnv("REDIS_ADDR", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Password: getEnv("REDIS_PASSWORD", ""),
			Queue:    getEnv("WIZARD_JOURNAL_QUEUE", cache.DefaultQueueName),
			MaxLen:   int64(getEnvInt("WIZARD_JOURNAL_MAXLEN", cache.DefaultMaxLen)),
		},
	}
}

// countFlag counts repeated boolean flags such as -v -v.
type countFlag int

func (c *countFlag) String() string   { return strconv.Itoa(int(*c)) }
func (c *countFlag) IsBoolFlag() bool { return true }

func (c *countFlag) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if v {
		*c++
	}
	return nil
}

// Parse applies command line flags on top of base and validates the result.
func Parse(args []string, base Config, output io.Writer) (Config, error) {
	cfg := base
	fs := flag.NewFlagSet("wizard-server", flag.ContinueOnError)
	fs.SetOutput(output)

	verbosity := countFlag(cfg.Verbosity)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "TCP port to listen on (env WIZARD_PORT)")
	fs.IntVar(&cfg.Players, "players", cfg.Players, fmt.Sprintf("number of players, %d to %d (env WIZARD_PLAYERS)", game.MinPlayers, game.MaxPlayers))
	fs.IntVar(&cfg.Rounds, "rounds", cfg.Rounds, "number of rounds, 0 for the maximum the deck allows")
	fs.Var(&verbosity, "v", "increase verbosity (repeatable)")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	fs.IntVar(&cfg.WSPort, "ws-port", cfg.WSPort, "WebSocket gateway port, 0 to disable")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed, 0 to seed from the clock")
	fs.StringVar(&cfg.Handshake, "handshake", cfg.Handshake, "handshake transform: identity or affine")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Verbosity = int(verbosity)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required values and ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("a valid --port is required, got %d", c.Port))
	}
	if c.WSPort < 0 || c.WSPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid --ws-port %d", c.WSPort))
	}
	if c.WSPort != 0 && c.WSPort == c.Port {
		errs = append(errs, errors.New("--ws-port must differ from --port"))
	}
	if c.Players < game.MinPlayers || c.Players > game.MaxPlayers {
		errs = append(errs, fmt.Errorf("--players must be between %d and %d, got %d", game.MinPlayers, game.MaxPlayers, c.Players))
	}
	if c.Rounds < 0 {
		errs = append(errs, fmt.Errorf("--rounds must be non-negative, got %d", c.Rounds))
	}
	if _, err := session.ParseHandshake(c.Handshake); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LogLevel maps the verbosity flags to a logrus level: WARN by default,
// INFO with -v, DEBUG with --debug.
func (c Config) LogLevel() logrus.Level {
	switch {
	case c.Debug:
		return logrus.DebugLevel
	case c.Verbosity > 0:
		return logrus.InfoLevel
	default:
		return logrus.WarnLevel
	}
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}
