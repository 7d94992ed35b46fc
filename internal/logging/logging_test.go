package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewConsoleOnly(t *testing.T) {
	logger, err := New(Config{Level: "debug", Console: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer logger.Sync()
	logger.Debug("console core works")
}

func TestNewInvalidLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud", Console: true}); err == nil {
		t.Error("Expected error for invalid level")
	}
}

func TestNewNopWhenNothingEnabled(t *testing.T) {
	logger, err := New(Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger.Core().Enabled(0) {
		t.Error("Expected a no-op logger")
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "app.log")
	logger, err := New(Config{Level: "info", File: FileConfig{Path: path}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("written to file")
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file content: %q", data)
	}
}

func TestNewTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Level: "info", File: FileConfig{Dir: dir}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("fresh file per run")
	logger.Sync()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected one log file, got %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "app_") || !strings.HasSuffix(name, ".log") {
		t.Errorf("file name = %q", name)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logging.yaml")
	content := "level: warn\nconsole: true\nfile:\n  dir: /var/log/app\n  max_size_mb: 10\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Level != "warn" || !cfg.Console {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.File.Dir != "/var/log/app" || cfg.File.MaxSizeMB != 10 {
		t.Errorf("file cfg = %+v", cfg.File)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
