package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// --- Path helpers ---

// ConfigDirPath returns ~/.fairsync
func ConfigDirPath() string {
	return filepath.Join(os.Getenv("HOME"), ConfigDir)
}

// ConfigFilePath returns ~/.fairsync/fairsync.json
func ConfigFilePath() string {
	return filepath.Join(ConfigDirPath(), ConfigFile)
}

// SecretsFilePath returns ~/.fairsync/secrets.env
func SecretsFilePath() string {
	return filepath.Join(ConfigDirPath(), SecretsFile)
}

// LogPath returns ~/.fairsync/fairsync.log
func LogPath() string {
	return filepath.Join(ConfigDirPath(), LogFile)
}

// --- Store ---

// Store manages reading and writing the unified JSON config.
type Store struct {
	mu      sync.Mutex
	path    string
	config  *Config
	modTime time.Time // last known modification time of config file
}

var (
	defaultStore *Store
	defaultMu    sync.Mutex
)

// DefaultStore returns the global Store singleton. On first call it loads
// from disk; later calls reload if the file changed underneath us.
func DefaultStore() *Store {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultStore == nil {
		defaultStore = &Store{path: ConfigFilePath()}
		if err := defaultStore.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		}
	}
	return defaultStore
}

// ResetDefaultStore clears the singleton so the next DefaultStore() call
// re-initializes. Intended for tests.
func ResetDefaultStore() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultStore = nil
}

// NewStore returns a store bound to an explicit file path. Intended for tests.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the config file from disk. A missing file yields an empty
// config, not an error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.config = newConfig()
			return nil
		}
		return err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	if cfg.Version == 0 {
		cfg.Version = CurrentConfigVersion
	}
	s.config = &cfg
	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}
	return nil
}

// reloadIfModified re-reads the file when its mtime moved past the last load.
func (s *Store) reloadIfModified() {
	info, err := os.Stat(s.path)
	if err != nil {
		return
	}
	if info.ModTime().After(s.modTime) {
		s.loadLocked()
	}
}

func (s *Store) ensureConfig() {
	if s.config == nil {
		s.config = newConfig()
	}
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.config, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return err
	}
	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}
	return nil
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	s.ensureConfig()
	return *s.config
}

// SetRemote replaces the remote backend settings and saves.
func (s *Store) SetRemote(rc RemoteConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	s.ensureConfig()
	s.config.Remote = rc
	return s.saveLocked()
}

// SetSource replaces the ingestion source settings and saves.
func (s *Store) SetSource(sc SourceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	s.ensureConfig()
	s.config.Source = sc
	return s.saveLocked()
}

// SetSave replaces the save-policy timing knobs and saves.
func (s *Store) SetSave(sc SaveConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	s.ensureConfig()
	s.config.Save = sc
	return s.saveLocked()
}

// SetWebPort sets the local web API port and saves.
func (s *Store) SetWebPort(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	s.ensureConfig()
	s.config.WebPort = port
	return s.saveLocked()
}
