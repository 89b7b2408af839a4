package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type reloadResult struct {
	cfg *FileConfig
	err error
}

// waitForReload drains results until match accepts one. Intermediate reloads
// can observe a truncated file.
func waitForReload(t *testing.T, results <-chan reloadResult, match func(reloadResult) bool) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case r := <-results:
			if match(r) {
				return
			}
		case <-timeout:
			t.Fatal("no matching reload after write")
		}
	}
}

func TestFileWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("traefik:\n  cert_resolver: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	results := make(chan reloadResult, 8)
	fw, err := NewFileWatcher(path, 20*time.Millisecond, func(cfg *FileConfig, err error) {
		results <- reloadResult{cfg, err}
	})
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	defer fw.Stop()

	if err := os.WriteFile(path, []byte("traefik:\n  cert_resolver: b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitForReload(t, results, func(r reloadResult) bool {
		return r.err == nil && r.cfg.Traefik.CertResolver == "b"
	})
}

func TestFileWatcher_ReportsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		t.Fatal(err)
	}

	results := make(chan reloadResult, 8)
	fw, err := NewFileWatcher(path, 20*time.Millisecond, func(cfg *FileConfig, err error) {
		results <- reloadResult{cfg, err}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Stop()

	if err := os.WriteFile(path, []byte("server:\n  next_port: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForReload(t, results, func(r reloadResult) bool { return r.err != nil })
}

func TestFileWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		t.Fatal(err)
	}

	results := make(chan reloadResult, 8)
	fw, err := NewFileWatcher(path, 10*time.Millisecond, func(cfg *FileConfig, err error) {
		results <- reloadResult{cfg, err}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.yml"), []byte("x: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-results:
		t.Fatal("reload triggered by unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFileWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		t.Fatal(err)
	}
	fw, err := NewFileWatcher(path, 0, func(*FileConfig, error) {})
	if err != nil {
		t.Fatal(err)
	}
	if err := fw.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := fw.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
