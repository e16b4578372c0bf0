// Package paths centralizes the on-disk layout under ~/.chatsync.
package paths

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.chatsync.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatsync")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// DBPath returns the snapshot/outbox database path under dataDir.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "chatsync.db")
}

// LogDir returns the log directory under dataDir.
func LogDir(dataDir string) string {
	return filepath.Join(dataDir, "logs")
}

// LogPath returns the daemon log file path under dataDir.
func LogPath(dataDir string) string {
	return filepath.Join(LogDir(dataDir), "chatsyncd.log")
}

// EnsureDirs creates the data directory tree with owner-only permissions.
func EnsureDirs(dataDir string) error {
	for _, d := range []string{dataDir, LogDir(dataDir)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
