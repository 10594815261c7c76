package dataset

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnsureLocalSkipsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wine.data")
	if err := os.WriteFile(path, []byte("1,2\n"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	f := NewFetcher(5*time.Second, 0)
	// No URL needed when the file already exists.
	if err := f.EnsureLocal(path, ""); err != nil {
		t.Errorf("EnsureLocal failed for existing file: %v", err)
	}
}

func TestEnsureLocalMissingWithoutURL(t *testing.T) {
	f := NewFetcher(5*time.Second, 0)
	err := f.EnsureLocal(filepath.Join(t.TempDir(), "wine.data"), "")
	if err == nil {
		t.Error("Expected error for missing file without URL, got nil")
	}
}

func TestEnsureLocalDownloads(t *testing.T) {
	const body = "1,14.23,1.71\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "nested", "wine.data")
	f := NewFetcher(5*time.Second, 1)
	if err := f.EnsureLocal(path, srv.URL); err != nil {
		t.Fatalf("EnsureLocal failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Downloaded file missing: %v", err)
	}
	if string(got) != body {
		t.Errorf("Expected %q, got %q", body, got)
	}
}

func TestEnsureLocalServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "wine.data")
	f := NewFetcher(5*time.Second, 0)
	if err := f.EnsureLocal(path, srv.URL); err == nil {
		t.Error("Expected error for 404 response, got nil")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Partial download left on disk after failure")
	}
}
