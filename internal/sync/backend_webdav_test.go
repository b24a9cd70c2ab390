package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebDAVRoundTrip(t *testing.T) {
	var stored []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "recruiter" || pass != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodPut:
			buf := make([]byte, r.ContentLength)
			r.Body.Read(buf)
			stored = buf
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			if stored == nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(stored)
		case http.MethodHead:
			if stored == nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("ETag", `"v42"`)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	b := &WebDAVBackend{Endpoint: srv.URL + "/fair/state.csv", Username: "recruiter", Password: "hunter2"}

	// Missing file: nil download, empty fingerprint.
	data, err := b.Download(context.Background())
	if err != nil || data != nil {
		t.Fatalf("missing file: data=%v err=%v", data, err)
	}
	fp, err := b.Fingerprint(context.Background())
	if err != nil || fp != "" {
		t.Fatalf("missing file fingerprint: %q, %v", fp, err)
	}

	if err := b.Upload(context.Background(), []byte("a,b\n1,2\n")); err != nil {
		t.Fatal(err)
	}
	data, err = b.Download(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a,b\n1,2\n" {
		t.Fatalf("round trip mismatch: %q", data)
	}
	fp, err = b.Fingerprint(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if fp != `"v42"` {
		t.Fatalf("fingerprint = %q, want the ETag", fp)
	}
}

func TestWebDAVAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	b := &WebDAVBackend{Endpoint: srv.URL + "/state.csv"}
	if _, err := b.Download(context.Background()); err == nil {
		t.Fatal("expected error on 401")
	}
	if err := b.Upload(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error on 401")
	}
}
