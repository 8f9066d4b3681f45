package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// NewFileStore
// ---------------------------------------------------------------------------

func TestNewFileStore_ExplicitDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore(%q) error: %v", dir, err)
	}
	if s.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", s.Dir(), dir)
	}
}

func TestNewFileStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "subdir", "cache")
	if _, err := NewFileStore(dir); err != nil {
		t.Fatalf("NewFileStore(%q) error: %v", dir, err)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Errorf("directory %q was not created", dir)
	}
}

func TestDefaultDir_XDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-test")
	got, err := DefaultDir()
	if err != nil {
		t.Fatalf("DefaultDir() error: %v", err)
	}
	if want := "/tmp/xdg-test/prayer-times"; got != want {
		t.Errorf("DefaultDir() = %q, want %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// Get / Set / Delete
// ---------------------------------------------------------------------------

func TestFileStore_RoundTrip(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	ctx := context.Background()

	if err := s.Set(ctx, "a/b", []byte(`{"x":1}`), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	got, err := s.Get(ctx, "a/b")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got) != `{"x":1}` {
		t.Errorf("Get = %q, want %q", got, `{"x":1}`)
	}
}

func TestFileStore_Miss(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestFileStore_Overwrite(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("one"), 0)
	_ = s.Set(ctx, "k", []byte("two"), 0)

	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "two" {
		t.Errorf("Get = %q, %v; want %q", got, err, "two")
	}

	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 1 {
		t.Errorf("expected 1 file after overwrite, found %d", len(entries))
	}
}

func TestFileStore_Expired(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	ctx := context.Background()

	base := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	if err := s.Set(ctx, "geo", []byte("x"), 24*time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	s.now = func() time.Time { return base.Add(23 * time.Hour) }
	if _, err := s.Get(ctx, "geo"); err != nil {
		t.Errorf("Get before expiry error: %v", err)
	}

	s.now = func() time.Time { return base.Add(25 * time.Hour) }
	if _, err := s.Get(ctx, "geo"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after expiry error = %v, want ErrNotFound", err)
	}
}

func TestFileStore_CorruptedFile(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("v"), 0)
	if err := os.WriteFile(s.path("k"), []byte("not-json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound for corrupted file", err)
	}
}

func TestFileStore_Delete(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("v"), 0)
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete of missing key error: %v", err)
	}
}

func TestFileStore_CancelledContext(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Set(ctx, "k", []byte("v"), 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Set error = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// fileKey
// ---------------------------------------------------------------------------

func TestFileKey_Deterministic(t *testing.T) {
	if fileKey("window/a") != fileKey("window/a") {
		t.Error("fileKey is not deterministic")
	}
}

func TestFileKey_DifferentInputs(t *testing.T) {
	if fileKey("window/a") == fileKey("window/b") {
		t.Error("different keys produced the same file name")
	}
}

func TestFileKey_Length(t *testing.T) {
	if got := len(fileKey("anything")); got != 16 {
		t.Errorf("fileKey length = %d, want 16", got)
	}
}
