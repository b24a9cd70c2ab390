// Package sync talks to the remote object store that holds the authoritative
// sheet. The store offers no locking, no compare-and-swap and no row-level
// API: only whole-file download/upload plus a cheap content fingerprint.
package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/Faroukdata/fairsync/internal/config"
)

var (
	// ErrNotConfigured means no remote backend has been set up.
	ErrNotConfigured = errors.New("remote backend not configured")
	// ErrAuthFailed means authentication failed even after one transparent
	// credential refresh.
	ErrAuthFailed = errors.New("remote authentication failed")
)

// Backend is the interface for remote sheet storage.
type Backend interface {
	// Download fetches the remote blob. Returns nil,nil if not found.
	Download(ctx context.Context) ([]byte, error)
	// Upload overwrites the remote blob. Every write is an unconditional
	// overwrite; conflict handling happens in the merge engine, not here.
	Upload(ctx context.Context, data []byte) error
	// Fingerprint returns an opaque content-derived token without
	// downloading the payload. Returns "" if the blob does not exist.
	Fingerprint(ctx context.Context) (string, error)
	// Name returns the backend type name.
	Name() string
}

// NewBackend creates a Backend from the remote config and credentials.
func NewBackend(rc *config.RemoteConfig, sec *config.Secrets) (Backend, error) {
	if !rc.Configured() {
		return nil, ErrNotConfigured
	}
	switch rc.Backend {
	case config.BackendDropbox:
		return NewDropboxBackend(rc.Path, sec)
	case config.BackendS3:
		return NewS3Backend(rc, sec)
	case config.BackendWebDAV:
		return &WebDAVBackend{
			Endpoint: rc.Path,
			Username: rc.Username,
			Password: sec.WebDAVPassword,
		}, nil
	default:
		return nil, fmt.Errorf("unknown remote backend: %q", rc.Backend)
	}
}
