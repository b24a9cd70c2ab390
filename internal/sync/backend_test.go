package sync

import (
	"errors"
	"testing"

	"github.com/Faroukdata/fairsync/internal/config"
)

func TestNewBackendNotConfigured(t *testing.T) {
	_, err := NewBackend(&config.RemoteConfig{}, &config.Secrets{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestNewBackendUnknown(t *testing.T) {
	_, err := NewBackend(&config.RemoteConfig{Backend: "ftp"}, &config.Secrets{})
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNewBackendDropboxRequiresCredentials(t *testing.T) {
	rc := &config.RemoteConfig{Backend: config.BackendDropbox, Path: "/state.csv"}
	if _, err := NewBackend(rc, &config.Secrets{}); err == nil {
		t.Fatal("expected error without any dropbox credential")
	}
	b, err := NewBackend(rc, &config.Secrets{DropboxAccessToken: "tok"})
	if err != nil {
		t.Fatal(err)
	}
	if b.Name() != "dropbox" {
		t.Fatalf("name = %q", b.Name())
	}
}

func TestNewBackendWebDAV(t *testing.T) {
	rc := &config.RemoteConfig{
		Backend:  config.BackendWebDAV,
		Path:     "https://dav.example.com/fair/state.csv",
		Username: "recruiter",
	}
	b, err := NewBackend(rc, &config.Secrets{WebDAVPassword: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	if b.Name() != "webdav" {
		t.Fatalf("name = %q", b.Name())
	}
}
