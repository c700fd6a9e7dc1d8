package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewDefaultsToUserHome(t *testing.T) {
	d, err := New("")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no user home dir: %v", err)
	}

	want := filepath.Join(userHome, DefaultDirName)
	if d.Path() != want {
		t.Errorf("Path() = %q, want %q", d.Path(), want)
	}
}

func TestEnsureExists(t *testing.T) {
	d, err := New(filepath.Join(t.TempDir(), "abridge-home"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if d.Exists() {
		t.Fatal("home should not exist before EnsureExists")
	}
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}
	if !d.Exists() {
		t.Error("home should exist after EnsureExists")
	}

	for _, dir := range []string{d.CachePath(), d.ExportsPath()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("stat %s: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestUnitArtifactPath(t *testing.T) {
	d, err := New("/tmp/abridge-test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got := d.UnitArtifactPath("abc123", 7)
	want := filepath.Join("/tmp/abridge-test", CacheDirName, "abc123", "unit_0007.txt")
	if got != want {
		t.Errorf("UnitArtifactPath = %q, want %q", got, want)
	}
}

func TestConfigExists(t *testing.T) {
	d, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if d.ConfigExists() {
		t.Fatal("config should not exist yet")
	}
	if err := os.WriteFile(d.ConfigPath(), []byte("defaults: {}\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if !d.ConfigExists() {
		t.Error("config should exist after write")
	}
}
