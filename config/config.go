// Package config loads the auction daemon configuration from a YAML file,
// an optional .env file and AUCTION_* environment variables, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/cloudx-io/playerauction/core"
)

type Config struct {
	Auction     AuctionConfig     `yaml:"auction"`
	Data        DataConfig        `yaml:"data"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Events      EventsConfig      `yaml:"events"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

type AuctionConfig struct {
	SessionID    string `yaml:"session_id"`
	MaxRound     int    `yaml:"max_round"`
	MinPerPlayer string `yaml:"min_per_player"` // e.g. "1M" or "1000000"
}

// MinPerPlayerAmount parses MinPerPlayer.
func (a AuctionConfig) MinPerPlayerAmount() (int64, error) {
	return core.ParseAmount(a.MinPerPlayer)
}

type DataConfig struct {
	TeamsFile   string `yaml:"teams_file"`
	PlayersFile string `yaml:"players_file"`
}

type PersistenceConfig struct {
	Backend        string        `yaml:"backend"` // memory, file, redis or postgres
	Key            string        `yaml:"key"`
	Async          bool          `yaml:"async"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	Dir            string        `yaml:"dir"`
	RedisURL       string        `yaml:"redis_url"`
	RedisPrefix    string        `yaml:"redis_prefix"`
	PostgresDSN    string        `yaml:"postgres_dsn"`
	PostgresTable  string        `yaml:"postgres_table"`
	CircuitBreaker bool          `yaml:"circuit_breaker"`
	SigningKeyFile string        `yaml:"signing_key_file"`
}

type EventsConfig struct {
	Backend       string `yaml:"backend"` // none, log or nats
	NATSURL       string `yaml:"nats_url"`
	StreamName    string `yaml:"stream_name"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type ServerConfig struct {
	Network        string        `yaml:"network"` // tcp or vsock
	Address        string        `yaml:"address"`
	VsockPort      uint32        `yaml:"vsock_port"`
	Workers        int           `yaml:"workers"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      float64       `yaml:"rate_limit"` // commands per second, 0 disables
	RateBurst      int           `yaml:"rate_burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

func Default() *Config {
	return &Config{
		Auction: AuctionConfig{
			MaxRound:     core.DefaultMaxRound,
			MinPerPlayer: "1M",
		},
		Data: DataConfig{
			TeamsFile:   "teams.json",
			PlayersFile: "players.json",
		},
		Persistence: PersistenceConfig{
			Backend:       "file",
			Key:           "auctionState",
			WriteTimeout:  5 * time.Second,
			Dir:           "data",
			RedisPrefix:   "auction:",
			PostgresTable: "auction_snapshots",
		},
		Events: EventsConfig{
			Backend:       "log",
			NATSURL:       "nats://127.0.0.1:4222",
			StreamName:    "AUCTION_EVENTS",
			SubjectPrefix: "auction.events",
		},
		Server: ServerConfig{
			Network:        "tcp",
			Address:        "127.0.0.1:5050",
			VsockPort:      5000,
			Workers:        10,
			RequestTimeout: 10 * time.Second,
			RateLimit:      20,
			RateBurst:      40,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadDotEnv loads .env files into the environment. Missing files are
// ignored; existing variables are not overwritten.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warn().Err(err).Str("path", p).Msg("could not load .env file")
			}
		}
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"AUCTION_SESSION_ID":          &c.Auction.SessionID,
		"AUCTION_MIN_PER_PLAYER":      &c.Auction.MinPerPlayer,
		"AUCTION_TEAMS_FILE":          &c.Data.TeamsFile,
		"AUCTION_PLAYERS_FILE":        &c.Data.PlayersFile,
		"AUCTION_PERSISTENCE_BACKEND": &c.Persistence.Backend,
		"AUCTION_PERSISTENCE_KEY":     &c.Persistence.Key,
		"AUCTION_SNAPSHOT_DIR":        &c.Persistence.Dir,
		"AUCTION_REDIS_URL":           &c.Persistence.RedisURL,
		"AUCTION_POSTGRES_DSN":        &c.Persistence.PostgresDSN,
		"AUCTION_SIGNING_KEY_FILE":    &c.Persistence.SigningKeyFile,
		"AUCTION_EVENTS_BACKEND":      &c.Events.Backend,
		"AUCTION_NATS_URL":            &c.Events.NATSURL,
		"AUCTION_SERVER_NETWORK":      &c.Server.Network,
		"AUCTION_SERVER_ADDRESS":      &c.Server.Address,
		"AUCTION_LOG_LEVEL":           &c.Log.Level,
		"AUCTION_LOG_FORMAT":          &c.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"AUCTION_MAX_ROUND":      &c.Auction.MaxRound,
		"AUCTION_SERVER_WORKERS": &c.Server.Workers,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
	}

	if v, ok := os.LookupEnv("AUCTION_VSOCK_PORT"); ok && v != "" {
		port, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid AUCTION_VSOCK_PORT: %w", err)
		}
		c.Server.VsockPort = uint32(port)
	}
	if v, ok := os.LookupEnv("AUCTION_PERSISTENCE_ASYNC"); ok && v != "" {
		async, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid AUCTION_PERSISTENCE_ASYNC: %w", err)
		}
		c.Persistence.Async = async
	}
	return nil
}

// Validate checks the configuration for values the daemon cannot start with.
func (c *Config) Validate() error {
	if c.Auction.MaxRound < 1 {
		return fmt.Errorf("auction.max_round must be at least 1, got %d", c.Auction.MaxRound)
	}
	if _, err := c.Auction.MinPerPlayerAmount(); err != nil {
		return fmt.Errorf("auction.min_per_player: %w", err)
	}
	if c.Data.TeamsFile == "" || c.Data.PlayersFile == "" {
		return errors.New("data.teams_file and data.players_file are required")
	}

	switch c.Persistence.Backend {
	case "memory":
	case "file":
		if c.Persistence.Dir == "" {
			return errors.New("persistence.dir is required for the file backend")
		}
	case "redis":
		if c.Persistence.RedisURL == "" {
			return errors.New("persistence.redis_url is required for the redis backend")
		}
	case "postgres":
		if c.Persistence.PostgresDSN == "" {
			return errors.New("persistence.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown persistence.backend %q", c.Persistence.Backend)
	}
	if c.Persistence.Key == "" {
		return errors.New("persistence.key is required")
	}

	switch c.Events.Backend {
	case "none", "log":
	case "nats":
		if c.Events.NATSURL == "" {
			return errors.New("events.nats_url is required for the nats backend")
		}
	default:
		return fmt.Errorf("unknown events.backend %q", c.Events.Backend)
	}

	switch c.Server.Network {
	case "tcp":
		if c.Server.Address == "" {
			return errors.New("server.address is required for tcp")
		}
	case "vsock":
		if c.Server.VsockPort == 0 {
			return errors.New("server.vsock_port is required for vsock")
		}
	default:
		return fmt.Errorf("unknown server.network %q", c.Server.Network)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative, got %v", c.Server.RateLimit)
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("server.workers must be at least 1, got %d", c.Server.Workers)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

// SetupLogging points the global zerolog logger at w.
func SetupLogging(cfg LogConfig, w io.Writer) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}
	return nil
}
