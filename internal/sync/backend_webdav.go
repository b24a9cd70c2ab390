package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebDAVBackend implements Backend using HTTP GET/PUT/HEAD with optional
// Basic Auth.
type WebDAVBackend struct {
	Endpoint string // Full URL to the remote file, e.g. https://dav.example.com/fair/state.csv
	Username string
	Password string

	// Client is overridable in tests; nil means a 20s-timeout default.
	Client *http.Client
}

func (b *WebDAVBackend) Name() string { return "webdav" }

func (b *WebDAVBackend) httpClient() *http.Client {
	if b.Client != nil {
		return b.Client
	}
	return &http.Client{Timeout: 20 * time.Second}
}

func (b *WebDAVBackend) newRequest(ctx context.Context, method string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.Endpoint, body)
	if err != nil {
		return nil, err
	}
	if b.Username != "" || b.Password != "" {
		req.SetBasicAuth(b.Username, b.Password)
	}
	return req, nil
}

func (b *WebDAVBackend) Download(ctx context.Context) ([]byte, error) {
	req, err := b.newRequest(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, fmt.Errorf("webdav download: %w", err)
	}
	resp, err := b.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("webdav download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("webdav download: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("webdav download: %w", err)
	}
	return data, nil
}

func (b *WebDAVBackend) Upload(ctx context.Context, data []byte) error {
	req, err := b.newRequest(ctx, http.MethodPut, strings.NewReader(string(data)))
	if err != nil {
		return fmt.Errorf("webdav upload: %w", err)
	}
	req.Header.Set("Content-Type", "text/csv")

	resp, err := b.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("webdav upload: %w", err)
	}
	defer resp.Body.Close()

	// WebDAV PUT typically returns 200, 201, or 204
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("webdav upload: HTTP %d: %s", resp.StatusCode, string(body))
}

// Fingerprint issues a HEAD request and uses the ETag (falling back to
// Last-Modified) as the change token.
func (b *WebDAVBackend) Fingerprint(ctx context.Context) (string, error) {
	req, err := b.newRequest(ctx, http.MethodHead, nil)
	if err != nil {
		return "", fmt.Errorf("webdav fingerprint: %w", err)
	}
	resp, err := b.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("webdav fingerprint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("webdav fingerprint: HTTP %d", resp.StatusCode)
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		return etag, nil
	}
	return resp.Header.Get("Last-Modified"), nil
}
