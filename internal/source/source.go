// Package source fetches the read-only shared CSV the sheet was published
// under. It is the bootstrap read at session start and the fallback when the
// primary backend download fails.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Faroukdata/fairsync/internal/table"
)

// CSVSource downloads a shared CSV link with a short TTL cache, so a 3s
// polling loop cannot turn into one HTTP GET per tick.
type CSVSource struct {
	url    string
	ttl    time.Duration
	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	cached    *table.Table
	fetchedAt time.Time
}

// New creates a source for a shared CSV URL. ttl <= 0 disables caching.
func New(rawURL string, ttl time.Duration) *CSVSource {
	return &CSVSource{
		url:    ForceDirectDownload(rawURL),
		ttl:    ttl,
		client: &http.Client{Timeout: 20 * time.Second},
		now:    time.Now,
	}
}

// ForceDirectDownload rewrites a Dropbox share link so it returns the raw CSV
// bytes instead of an HTML preview page (dl=0 -> dl=1).
func ForceDirectDownload(rawURL string) string {
	if rawURL == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Get("dl") == "" && !strings.Contains(u.Host, "dropbox") {
		return rawURL
	}
	q.Set("dl", "1")
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch returns the normalized table behind the shared link, serving a cached
// copy while it is younger than the TTL.
func (s *CSVSource) Fetch(ctx context.Context) (*table.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Callers own the returned table and mutate it; never hand out the
	// cached pointer itself.
	if s.cached != nil && s.ttl > 0 && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.cached.Clone(), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("source fetch: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source fetch: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("source fetch: %w", err)
	}
	t, err := table.ParseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("source fetch: %w", err)
	}
	s.cached = t
	s.fetchedAt = s.now()
	return t.Clone(), nil
}
