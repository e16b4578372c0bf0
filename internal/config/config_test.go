package config

import (
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	in := &Config{
		ServerURL:  "https://chat.example.com",
		ChannelURL: "wss://chat.example.com/ws",
		Token:      "tok",
		UserID:     "u1",
		UserName:   "Alba",
		DataDir:    "/tmp/chatsync-test",
	}
	if err := Save(path, in); err != nil {
		t.Fatal(err)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *out != *in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("want error for missing config file")
	}
}

func TestLoadDefaultsDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := Save(path, &Config{ServerURL: "https://x", ChannelURL: "wss://x", UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir == "" {
		t.Error("empty data_dir not defaulted")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{ServerURL: "https://x", ChannelURL: "wss://x", UserID: "u1"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	for _, mutate := range []func(*Config){
		func(c *Config) { c.ServerURL = "" },
		func(c *Config) { c.ChannelURL = "" },
		func(c *Config) { c.UserID = "" },
	} {
		c := *cfg
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("incomplete config %+v accepted", c)
		}
	}
}
