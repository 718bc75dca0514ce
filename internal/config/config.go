// Package config loads runtime settings from virtuoso.yaml, .env and VIRTUOSO_* variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/virtuoso"
	"github.com/aretw0/virtuoso/internal/logging"
	"github.com/aretw0/virtuoso/pkg/adapters/file"
	"github.com/aretw0/virtuoso/pkg/adapters/memory"
	redisstore "github.com/aretw0/virtuoso/pkg/adapters/redis"
	"github.com/aretw0/virtuoso/pkg/persistence/middleware"
	"github.com/aretw0/virtuoso/pkg/ports"
	"github.com/aretw0/virtuoso/pkg/session"
	"github.com/joho/godotenv"
	backend "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "virtuoso.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VIRTUOSO_"

// Store backends.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds the runtime settings of the CLI and servers.
type Config struct {
	DataDir string      `yaml:"data_dir"`
	Store   string      `yaml:"store"`
	Redis   RedisConfig `yaml:"redis"`
	HTTP    HTTPConfig  `yaml:"http"`
	Log     LogConfig   `yaml:"log"`
	Play    PlayConfig  `yaml:"play"`

	// EncryptionKey is a base64 AES-256 key. When set, stored documents are encrypted at rest.
	EncryptionKey string `yaml:"encryption_key"`

	once   sync.Once
	client *backend.Client
}

// RedisConfig selects the Redis server used by the redis store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// HTTPConfig configures `virtuoso serve`.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PlayConfig tunes playback and recording.
type PlayConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// SendRate is the number of sends per second across a run. Zero means unlimited.
	SendRate   float64       `yaml:"send_rate"`
	CueTimeout time.Duration `yaml:"cue_timeout"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		DataDir: ".virtuoso",
		Store:   StoreFile,
		Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "virtuoso:"},
		HTTP:    HTTPConfig{Addr: ":8080"},
		Log:     LogConfig{Level: "info", Format: string(logging.FormatText)},
		Play: PlayConfig{
			ConnectTimeout: 10 * time.Second,
			CueTimeout:     5 * time.Second,
		},
	}
}

// Load reads path (DefaultFile when empty) over the defaults, then applies .env and
// VIRTUOSO_* overrides. A missing default file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Variables already set in the environment win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("DATA_DIR", &c.DataDir)
	str("STORE", &c.Store)
	str("ENCRYPTION_KEY", &c.EncryptionKey)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("REDIS_PREFIX", &c.Redis.Prefix)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup(EnvPrefix + "REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sREDIS_DB %q: %w", EnvPrefix, v, err)
		}
		c.Redis.DB = db
	}
	if v, ok := lookup(EnvPrefix + "SEND_RATE"); ok {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sSEND_RATE %q: %w", EnvPrefix, v, err)
		}
		c.Play.SendRate = r
	}
	for name, dst := range map[string]*time.Duration{
		"CONNECT_TIMEOUT": &c.Play.ConnectTimeout,
		"CUE_TIMEOUT":     &c.Play.CueTimeout,
	} {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, name, v, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreFile, StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q (expected file, memory or redis)", c.Store)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return err
	}
	if c.Play.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got %s", c.Play.ConnectTimeout)
	}
	if c.Play.CueTimeout <= 0 {
		return fmt.Errorf("cue_timeout must be positive, got %s", c.Play.CueTimeout)
	}
	if c.Play.SendRate < 0 {
		return fmt.Errorf("send_rate must not be negative, got %v", c.Play.SendRate)
	}
	if _, err := c.encryption(); err != nil {
		return err
	}
	return nil
}

// encryption returns the at-rest middleware, or nil when no key is configured.
func (c *Config) encryption() (middleware.Middleware, error) {
	if c.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption_key: %w", err)
	}
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
	if err != nil {
		return nil, fmt.Errorf("invalid encryption_key: %w", err)
	}
	return mw, nil
}

// Logger builds the slog logger described by the Log section.
func (c *Config) Logger() *slog.Logger {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	format, err := logging.ParseFormat(c.Log.Format)
	if err != nil {
		format = logging.FormatText
	}
	return logging.New(level, format)
}

// SendLimiter returns the limiter for send stanzas, or nil when unlimited.
func (c *Config) SendLimiter() *rate.Limiter {
	if c.Play.SendRate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.Play.SendRate), 1)
}

func (c *Config) redisClient() *backend.Client {
	c.once.Do(func() {
		c.client = backend.NewClient(&backend.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
	})
	return c.client
}

// Backends returns the store factory for the configured backend.
func (c *Config) Backends() virtuoso.BackendFactory {
	return func(collection string) (ports.Backend, error) {
		var b ports.Backend
		switch c.Store {
		case StoreMemory:
			b = memory.NewBackend()
		case StoreRedis:
			b = redisstore.NewFromClient(c.redisClient(), collection, redisstore.WithPrefix(c.Redis.Prefix))
		case StoreFile:
			b = file.New(filepath.Join(c.DataDir, collection+".json"), collection)
		default:
			return nil, fmt.Errorf("unknown store %q", c.Store)
		}

		mw, err := c.encryption()
		if err != nil {
			return nil, err
		}
		if mw != nil {
			b = middleware.Chain(b, mw)
		}
		return b, nil
	}
}

// Registry returns the account registry. With the redis store, account locks are
// taken in Redis so several engines can share accounts.
func (c *Config) Registry(logger *slog.Logger) *session.Registry {
	var opts []session.Option
	if logger != nil {
		opts = append(opts, session.WithLogger(logger))
	}
	if c.Store == StoreRedis {
		opts = append(opts, session.WithLocker(redisstore.NewLocker(c.redisClient(), strings.TrimSuffix(c.Redis.Prefix, ":")+":lock:")))
	}
	return session.NewRegistry(opts...)
}

// Close releases the Redis client if one was opened.
func (c *Config) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
