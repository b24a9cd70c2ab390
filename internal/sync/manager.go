package sync

import (
	"context"
	"fmt"
	"log"

	"github.com/Faroukdata/fairsync/internal/table"
)

// Source is a read-only fallback for the authoritative download, typically
// the shared CSV link the sheet was originally published under.
type Source interface {
	Fetch(ctx context.Context) (*table.Table, error)
}

// Manager turns the raw blob Backend into table-level remote I/O: download +
// decrypt + parse on the way in, serialize + encrypt + upload on the way out,
// with the ingestion source as read fallback.
type Manager struct {
	backend    Backend
	fallback   Source
	passphrase string
	logger     *log.Logger
}

// NewManager wires a Manager. fallback may be nil when no source URL is
// configured.
func NewManager(backend Backend, fallback Source, passphrase string, logger *log.Logger) *Manager {
	return &Manager{
		backend:    backend,
		fallback:   fallback,
		passphrase: passphrase,
		logger:     logger,
	}
}

// Name returns the underlying backend name.
func (m *Manager) Name() string {
	return m.backend.Name()
}

// Fetch downloads and parses the current remote table. When the primary
// download fails or the blob does not exist yet, it falls back to the
// read-only source; with no fallback available a missing blob is an empty
// table and a failed download is an error.
func (m *Manager) Fetch(ctx context.Context) (*table.Table, error) {
	data, err := m.backend.Download(ctx)
	if err != nil {
		if m.fallback == nil {
			return nil, fmt.Errorf("fetch remote: %w", err)
		}
		m.logger.Printf("remote download failed (%v), falling back to source", err)
		return m.fallback.Fetch(ctx)
	}
	if data == nil {
		if m.fallback != nil {
			return m.fallback.Fetch(ctx)
		}
		return table.Empty(), nil
	}
	plain, err := Open(data, m.passphrase)
	if err != nil {
		return nil, fmt.Errorf("fetch remote: %w", err)
	}
	t, err := table.ParseCSV(plain)
	if err != nil {
		return nil, fmt.Errorf("fetch remote: %w", err)
	}
	return t, nil
}

// Put serializes and uploads a table, overwriting the remote blob.
func (m *Manager) Put(ctx context.Context, t *table.Table) error {
	data, err := table.MarshalCSV(t)
	if err != nil {
		return fmt.Errorf("put remote: %w", err)
	}
	sealed, err := Seal(data, m.passphrase)
	if err != nil {
		return fmt.Errorf("put remote: %w", err)
	}
	if err := m.backend.Upload(ctx, sealed); err != nil {
		return fmt.Errorf("put remote: %w", err)
	}
	return nil
}

// Fingerprint returns the remote content fingerprint without downloading the
// payload.
func (m *Manager) Fingerprint(ctx context.Context) (string, error) {
	return m.backend.Fingerprint(ctx)
}
