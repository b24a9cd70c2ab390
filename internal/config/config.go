// Package config manages the on-disk FairSync configuration: which remote
// backend holds the shared sheet, where the read-only ingestion source lives,
// and the save-policy timing knobs.
package config

import "time"

const (
	ConfigDir   = ".fairsync"
	ConfigFile  = "fairsync.json"
	SecretsFile = "secrets.env"
	LogFile     = "fairsync.log"

	DefaultWebPort = 19870

	// Supported remote backends.
	BackendDropbox = "dropbox"
	BackendS3      = "s3"
	BackendWebDAV  = "webdav"

	DefaultPollIntervalSeconds  = 3
	DefaultBatchIntervalSeconds = 30
	DefaultDebounceMillis       = 350
	DefaultSourceTTLSeconds     = 10
)

// CurrentConfigVersion is written into new config files.
// Version history:
//   v1: initial schema (remote, source, save, web_port)
const CurrentConfigVersion = 1

// RemoteConfig selects and parameterizes the remote object-store backend.
// Credentials never live here; they come from secrets.env (see Secrets).
type RemoteConfig struct {
	Backend string `json:"backend"`
	// Path is the Dropbox file path, the S3 object key, or the full WebDAV
	// file URL, depending on Backend.
	Path     string `json:"path,omitempty"`
	Endpoint string `json:"endpoint,omitempty"` // s3 only
	Bucket   string `json:"bucket,omitempty"`   // s3 only
	Region   string `json:"region,omitempty"`   // s3 only
	Username string `json:"username,omitempty"` // webdav only
}

// Configured reports whether a backend has been selected at all.
func (r *RemoteConfig) Configured() bool {
	return r != nil && r.Backend != ""
}

// SourceConfig points at the read-only shared CSV used to bootstrap a session
// and as the download fallback when the primary backend read fails.
type SourceConfig struct {
	URL             string `json:"url,omitempty"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds,omitempty"`
}

// CacheTTL returns the configured TTL, defaulted.
func (s *SourceConfig) CacheTTL() time.Duration {
	if s == nil || s.CacheTTLSeconds <= 0 {
		return DefaultSourceTTLSeconds * time.Second
	}
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// SaveConfig holds the save-policy timing knobs.
type SaveConfig struct {
	DebounceMillis       int `json:"debounce_millis,omitempty"`
	BatchIntervalSeconds int `json:"batch_interval_seconds,omitempty"`
	PollIntervalSeconds  int `json:"poll_interval_seconds,omitempty"`
}

// Debounce returns the debounce window for instant saves while filtering.
func (s *SaveConfig) Debounce() time.Duration {
	if s == nil || s.DebounceMillis <= 0 {
		return DefaultDebounceMillis * time.Millisecond
	}
	return time.Duration(s.DebounceMillis) * time.Millisecond
}

// BatchInterval returns the buffered-save interval used when no filter is active.
func (s *SaveConfig) BatchInterval() time.Duration {
	if s == nil || s.BatchIntervalSeconds <= 0 {
		return DefaultBatchIntervalSeconds * time.Second
	}
	return time.Duration(s.BatchIntervalSeconds) * time.Second
}

// PollInterval returns the remote fingerprint polling interval.
func (s *SaveConfig) PollInterval() time.Duration {
	if s == nil || s.PollIntervalSeconds <= 0 {
		return DefaultPollIntervalSeconds * time.Second
	}
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// Config is the unified JSON configuration stored at ~/.fairsync/fairsync.json.
type Config struct {
	Version int          `json:"version"`
	Remote  RemoteConfig `json:"remote"`
	Source  SourceConfig `json:"source"`
	Save    SaveConfig   `json:"save"`
	WebPort int          `json:"web_port,omitempty"`
}

// GetWebPort returns the configured web port, defaulted.
func (c *Config) GetWebPort() int {
	if c == nil || c.WebPort <= 0 {
		return DefaultWebPort
	}
	return c.WebPort
}

func newConfig() *Config {
	return &Config{Version: CurrentConfigVersion}
}
