package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// testDropbox wires a DropboxBackend against a single httptest server
// standing in for the api, content and auth hosts.
func testDropbox(srv *httptest.Server, accessToken string) *DropboxBackend {
	return &DropboxBackend{
		path:         "/career_fair/state.csv",
		accessToken:  accessToken,
		appKey:       "app-key",
		appSecret:    "app-secret",
		refreshToken: "refresh-token",
		client:       &http.Client{Timeout: 5 * time.Second},
		apiBase:      srv.URL,
		contentBase:  srv.URL,
		authBase:     srv.URL,
	}
}

func TestDropboxDownloadRetriesAfterRefresh(t *testing.T) {
	var refreshes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/token":
			if err := r.ParseForm(); err != nil {
				t.Fatal(err)
			}
			if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh-token" {
				t.Errorf("unexpected token form: %v", r.Form)
			}
			atomic.AddInt32(&refreshes, 1)
			json.NewEncoder(w).Encode(map[string]string{"access_token": "fresh-token"})
		case "/2/files/download":
			switch r.Header.Get("Authorization") {
			case "Bearer stale-token":
				w.WriteHeader(http.StatusUnauthorized)
			case "Bearer fresh-token":
				w.Write([]byte("first_name,last_name\nMarie,Curie\n"))
			default:
				t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
				w.WriteHeader(http.StatusForbidden)
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	b := testDropbox(srv, "stale-token")
	data, err := b.Download(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("expected payload after refresh-and-retry")
	}
	if n := atomic.LoadInt32(&refreshes); n != 1 {
		t.Fatalf("refreshes = %d, want exactly 1", n)
	}
}

func TestDropboxStillUnauthorizedAfterRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/token" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "also-bad"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	b := testDropbox(srv, "bad-token")
	if _, err := b.Download(context.Background()); err == nil {
		t.Fatal("expected error after the single retry fails")
	}
}

func TestDropboxDownloadMissingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error_summary": "path/not_found/..."}`))
	}))
	defer srv.Close()

	b := testDropbox(srv, "token")
	data, err := b.Download(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if data != nil {
		t.Fatal("missing file must be nil, nil")
	}
}

func TestDropboxUploadSendsOverwriteArg(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/files/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var arg struct {
			Path string `json:"path"`
			Mode string `json:"mode"`
		}
		if err := json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &arg); err != nil {
			t.Fatalf("bad Dropbox-API-Arg: %v", err)
		}
		if arg.Mode != "overwrite" {
			t.Errorf("mode = %q, want overwrite", arg.Mode)
		}
		if arg.Path != "/career_fair/state.csv" {
			t.Errorf("path = %q", arg.Path)
		}
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	b := testDropbox(srv, "token")
	if err := b.Upload(context.Background(), []byte("data")); err != nil {
		t.Fatal(err)
	}
}

func TestDropboxFingerprint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/files/get_metadata" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"content_hash": "abc123"})
	}))
	defer srv.Close()

	b := testDropbox(srv, "token")
	fp, err := b.Fingerprint(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if fp != "abc123" {
		t.Fatalf("fingerprint = %q", fp)
	}
}

func TestDropboxFingerprintMissingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error_summary": "path/not_found/..."}`))
	}))
	defer srv.Close()

	b := testDropbox(srv, "token")
	fp, err := b.Fingerprint(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if fp != "" {
		t.Fatalf("missing file should fingerprint as empty, got %q", fp)
	}
}
