package internal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvBackendURL, EnvDatabasePath, EnvTimeout, EnvListenAddr, EnvDictationCmd} {
		t.Setenv(key, "")
		// godotenv only fills variables that are absent
		os.Unsetenv(key)
	}
	// keep godotenv away from any .env in the package directory
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.BackendURL != DefaultBackendURL {
		t.Errorf("BackendURL = %q, want %q", cfg.BackendURL, DefaultBackendURL)
	}
	if cfg.Timeout != 180*time.Second {
		t.Errorf("Timeout = %v, want 180s", cfg.Timeout)
	}
	if cfg.Debounce != time.Second {
		t.Errorf("Debounce = %v, want 1s", cfg.Debounce)
	}
	if cfg.MaxSessions != MaxSessions {
		t.Errorf("MaxSessions = %d, want %d", cfg.MaxSessions, MaxSessions)
	}
}

func TestLoadConfig_Layering(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlData := "backend_url: http://rag.local:9000/\ntimeout: 30s\nlisten: \":4000\"\n"
	if err := os.WriteFile(path, []byte(yamlData), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(".env", []byte(EnvDictationCmd+"=whisper-listen --lang id\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvTimeout, "45s")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.BackendURL != "http://rag.local:9000" {
		t.Errorf("BackendURL = %q, trailing slash should be stripped", cfg.BackendURL)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, environment should override the file", cfg.Timeout)
	}
	if cfg.ListenAddr != ":4000" {
		t.Errorf("ListenAddr = %q, want :4000", cfg.ListenAddr)
	}
	if cfg.DictationCmd != "whisper-listen --lang id" {
		t.Errorf("DictationCmd = %q, want value from .env", cfg.DictationCmd)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("backend_url: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(path)
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Source != "config" {
		t.Errorf("LoadConfig(bad yaml) error = %v, want config ParseError", err)
	}

	t.Setenv(EnvTimeout, "soon")
	_, err = LoadConfig("")
	if !errors.As(err, &pe) || pe.Key != EnvTimeout {
		t.Errorf("LoadConfig(bad timeout) error = %v, want ParseError for %s", err, EnvTimeout)
	}
}

func TestLoadConfig_MissingFileIsFine(t *testing.T) {
	clearConfigEnv(t)

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Errorf("LoadConfig(missing) error = %v", err)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:8001/": "http://localhost:8001",
		"http://localhost:8001":  "http://localhost:8001",
		" http://rag/api/ ":      "http://rag/api",
	}
	for in, want := range tests {
		if got := NormalizeBaseURL(in); got != want {
			t.Errorf("NormalizeBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}
