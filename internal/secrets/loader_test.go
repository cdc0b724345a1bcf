package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  from-file \n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Load(Source{Name: "api key", File: path, Value: "inline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("expected file value, got %q", got)
	}
}

func TestLoadFallsBackToEnv(t *testing.T) {
	t.Setenv("ERFLOG_TEST_SECRET", " from-env ")

	got, err := Load(Source{Name: "api key", Env: "ERFLOG_TEST_SECRET"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-env" {
		t.Fatalf("expected env value, got %q", got)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Load(Source{Name: "api key", File: path})
	if err == nil || !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("expected empty file error, got %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(Source{})
	if err == nil || !strings.Contains(err.Error(), "secret is not configured") {
		t.Fatalf("expected not configured error, got %v", err)
	}
}
