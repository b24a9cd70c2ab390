package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Faroukdata/fairsync/internal/config"
)

// DropboxBackend stores the sheet as one file in a Dropbox App Folder.
// It authenticates with either a long-lived access token or the
// app-key/app-secret/refresh-token trio; with the trio, an expired access
// token is refreshed transparently and the failed call retried once.
type DropboxBackend struct {
	path string

	mu          sync.Mutex
	accessToken string

	appKey       string
	appSecret    string
	refreshToken string

	client *http.Client

	// API hosts, overridable in tests.
	apiBase     string
	contentBase string
	authBase    string
}

// NewDropboxBackend creates a Dropbox backend for the given file path
// (e.g. "/career_fair/state.csv").
func NewDropboxBackend(path string, sec *config.Secrets) (*DropboxBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("dropbox: remote path not set")
	}
	if sec.DropboxAccessToken == "" && sec.DropboxRefreshToken == "" {
		return nil, fmt.Errorf("dropbox: provide %s or the trio %s/%s/%s",
			config.EnvDropboxAccessToken, config.EnvDropboxAppKey,
			config.EnvDropboxAppSecret, config.EnvDropboxRefreshToken)
	}
	return &DropboxBackend{
		path:         path,
		accessToken:  sec.DropboxAccessToken,
		appKey:       sec.DropboxAppKey,
		appSecret:    sec.DropboxAppSecret,
		refreshToken: sec.DropboxRefreshToken,
		client:       &http.Client{Timeout: 20 * time.Second},
		apiBase:      "https://api.dropboxapi.com",
		contentBase:  "https://content.dropboxapi.com",
		authBase:     "https://api.dropbox.com",
	}, nil
}

func (b *DropboxBackend) Name() string { return "dropbox" }

// token returns the current access token, exchanging the refresh token for a
// fresh one if none is cached yet.
func (b *DropboxBackend) token(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accessToken != "" {
		return b.accessToken, nil
	}
	return b.refreshLocked(ctx)
}

// refresh discards the cached access token and obtains a new one.
func (b *DropboxBackend) refresh(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessToken = ""
	return b.refreshLocked(ctx)
}

func (b *DropboxBackend) refreshLocked(ctx context.Context) (string, error) {
	if b.refreshToken == "" || b.appKey == "" || b.appSecret == "" {
		return "", fmt.Errorf("dropbox: no refresh credentials: %w", ErrAuthFailed)
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {b.refreshToken},
		"client_id":     {b.appKey},
		"client_secret": {b.appSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.authBase+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("dropbox token: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("dropbox token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("dropbox token: HTTP %d: %s: %w", resp.StatusCode, string(body), ErrAuthFailed)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("dropbox token: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("dropbox token: empty access token: %w", ErrAuthFailed)
	}
	b.accessToken = out.AccessToken
	return b.accessToken, nil
}

// do sends the request built by build, retrying exactly once with refreshed
// credentials on an authentication failure. The caller owns the response body.
func (b *DropboxBackend) do(ctx context.Context, build func(token string) (*http.Request, error)) (*http.Response, error) {
	tok, err := b.token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := build(tok)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	tok, err = b.refresh(ctx)
	if err != nil {
		return nil, err
	}
	req, err = build(tok)
	if err != nil {
		return nil, err
	}
	resp, err = b.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, fmt.Errorf("dropbox: still unauthorized after token refresh: %w", ErrAuthFailed)
	}
	return resp, nil
}

// apiArg marshals the Dropbox-API-Arg header value.
func apiArg(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

// notFound reports whether a 409 response body describes a missing path.
func notFound(status int, body []byte) bool {
	return status == http.StatusConflict && bytes.Contains(body, []byte("not_found"))
}

func (b *DropboxBackend) Download(ctx context.Context) ([]byte, error) {
	resp, err := b.do(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			b.contentBase+"/2/files/download", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Dropbox-API-Arg", apiArg(map[string]string{"path": b.path}))
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("dropbox download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if notFound(resp.StatusCode, body) {
			return nil, nil
		}
		return nil, fmt.Errorf("dropbox download: HTTP %d: %s", resp.StatusCode, string(body))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dropbox download: %w", err)
	}
	return data, nil
}

func (b *DropboxBackend) Upload(ctx context.Context, data []byte) error {
	arg := apiArg(map[string]any{
		"path": b.path,
		"mode": "overwrite",
		"mute": true,
	})
	resp, err := b.do(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			b.contentBase+"/2/files/upload", bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Dropbox-API-Arg", arg)
		req.Header.Set("Content-Type", "application/octet-stream")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("dropbox upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("dropbox upload: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Fingerprint returns Dropbox's content_hash for the stored file, a hash of
// the blob's content rather than its path or timestamp.
func (b *DropboxBackend) Fingerprint(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{"path": b.path})
	resp, err := b.do(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			b.apiBase+"/2/files/get_metadata", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("dropbox fingerprint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		if notFound(resp.StatusCode, respBody) {
			return "", nil
		}
		return "", fmt.Errorf("dropbox fingerprint: HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	var meta struct {
		ContentHash string `json:"content_hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", fmt.Errorf("dropbox fingerprint: %w", err)
	}
	return meta.ContentHash, nil
}
