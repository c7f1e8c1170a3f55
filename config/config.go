// Package config loads reipc settings from a TOML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/reipc/codec"
	"github.com/vinayprograms/reipc/logging"
	"github.com/vinayprograms/reipc/transport"
)

// SocketEnv overrides the configured socket path when set.
const SocketEnv = "RPC_SOCKET"

// Config holds connection, logging and bench settings.
type Config struct {
	// Socket is the path of the node's IPC endpoint.
	Socket string `toml:"socket"`

	// DefaultTimeout bounds each call, e.g. "5s". Empty or "0" waits forever.
	DefaultTimeout string `toml:"default_timeout"`

	// Codec is the wire format: json or msgpack.
	Codec string `toml:"codec"`

	// ReadBufferSize is the initial read buffer capacity in bytes.
	ReadBufferSize int `toml:"read_buffer_size"`

	// LogLevel is one of debug, info, warn, error, off.
	LogLevel string `toml:"log_level"`

	Bench Bench `toml:"bench"`
}

// Bench configures `reipc bench`.
type Bench struct {
	Concurrency int `toml:"concurrency"`
	Requests    int `toml:"requests"`

	// Rate caps calls per second; zero means unlimited.
	Rate int `toml:"rate"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DefaultTimeout: "5s",
		Codec:          "json",
		ReadBufferSize: transport.DefaultReadBufferSize,
		LogLevel:       "info",
		Bench: Bench{
			Concurrency: 100,
			Requests:    1000,
		},
	}
}

// StandardPaths returns the config file locations in order of priority.
func StandardPaths() []string {
	paths := []string{"reipc.toml"}

	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "reipc", "config.toml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".reipc.toml"))
	}
	return paths
}

// Find loads the first config file that exists in StandardPaths. With no
// file present it returns the defaults and an empty path.
func Find() (*Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			return cfg, path, err
		}
	}
	cfg := Default()
	cfg.applyEnv()
	return cfg, "", nil
}

// Load reads path over the defaults, applies the environment override and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(SocketEnv)); v != "" {
		c.Socket = v
	}
}

// Validate checks every field. An empty socket is allowed here; the CLI
// requires one before dialing.
func (c *Config) Validate() error {
	if _, err := c.parseTimeout(); err != nil {
		return err
	}
	if _, err := codec.ByName(c.Codec); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("read_buffer_size must be positive, got %d", c.ReadBufferSize)
	}
	if c.Bench.Concurrency <= 0 {
		return fmt.Errorf("bench.concurrency must be positive, got %d", c.Bench.Concurrency)
	}
	if c.Bench.Requests <= 0 {
		return fmt.Errorf("bench.requests must be positive, got %d", c.Bench.Requests)
	}
	if c.Bench.Rate < 0 {
		return fmt.Errorf("bench.rate must not be negative, got %d", c.Bench.Rate)
	}
	return nil
}

// Timeout returns the parsed default timeout; zero means no deadline.
// Call Validate first; an unparsable value yields zero.
func (c *Config) Timeout() time.Duration {
	d, _ := c.parseTimeout()
	return d
}

func (c *Config) parseTimeout() (time.Duration, error) {
	s := strings.TrimSpace(c.DefaultTimeout)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("default_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("default_timeout must not be negative, got %s", s)
	}
	return d, nil
}

// CodecImpl returns the configured codec.
func (c *Config) CodecImpl() (codec.Codec, error) {
	return codec.ByName(c.Codec)
}

// Level returns the configured log level.
func (c *Config) Level() (logging.Level, error) {
	return logging.ParseLevel(c.LogLevel)
}
