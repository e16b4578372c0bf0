package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/luispaiva/chatsync/internal/paths"
)

// Config represents the global ~/.chatsync/config.toml.
type Config struct {
	// ServerURL is the base URL of the request/response API.
	ServerURL string `toml:"server_url"`
	// ChannelURL is the websocket endpoint of the live channel.
	ChannelURL string `toml:"channel_url"`
	// Token authenticates both surfaces. Empty means auth required.
	Token string `toml:"token"`

	UserID   string `toml:"user_id"`
	UserName string `toml:"user_name"`

	// DataDir holds the snapshot database and logs. Defaults to the
	// base directory when unset.
	DataDir string `toml:"data_dir"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = paths.BaseDir()
	}
	return &cfg, nil
}

// Validate checks the fields a daemon cannot start without.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("config: server_url is required")
	}
	if c.ChannelURL == "" {
		return errors.New("config: channel_url is required")
	}
	if c.UserID == "" {
		return errors.New("config: user_id is required")
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
