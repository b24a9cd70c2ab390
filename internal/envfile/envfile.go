// Package envfile reads and writes flat KEY=value files. FairSync keeps
// remote-store credentials in ~/.fairsync/secrets.env so they never end up in
// the JSON config.
package envfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Entry represents a key=value pair in an .env file.
type Entry struct {
	Key   string
	Value string
}

// File represents a parsed .env file.
type File struct {
	Path    string
	Entries []Entry
}

// Get returns the value for a key, or empty string.
func (f *File) Get(key string) string {
	for _, e := range f.Entries {
		if e.Key == key {
			return e.Value
		}
	}
	return ""
}

// Set sets a key to a value. If the key exists, it updates; otherwise appends.
func (f *File) Set(key, value string) {
	for i, e := range f.Entries {
		if e.Key == key {
			f.Entries[i].Value = value
			return
		}
	}
	f.Entries = append(f.Entries, Entry{Key: key, Value: value})
}

// Load parses an .env file. Lines starting with # or empty lines are skipped.
// A missing file yields an empty File, not an error.
func Load(path string) (*File, error) {
	f := &File{Path: path}
	fh, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Strip inline comments
		if idx := strings.Index(line, " #"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		f.Entries = append(f.Entries, Entry{Key: k, Value: v})
	}
	return f, scanner.Err()
}

// Save writes the file back to disk with owner-only permissions.
func (f *File) Save() error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return err
	}
	var b strings.Builder
	for _, e := range f.Entries {
		fmt.Fprintf(&b, "%s=%s\n", e.Key, e.Value)
	}
	return os.WriteFile(f.Path, []byte(b.String()), 0600)
}
