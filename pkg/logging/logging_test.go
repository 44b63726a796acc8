package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/natefinch/lumberjack"
	log "github.com/sirupsen/logrus"
)

func TestConfigureStderr(t *testing.T) {
	logger := log.New()
	w, err := configure(logger, Options{Level: "warn"})
	if err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	if w != os.Stderr {
		t.Errorf("Expected stderr writer, got %T", w)
	}
	if logger.GetLevel() != log.WarnLevel {
		t.Errorf("Expected warn level, got %v", logger.GetLevel())
	}
}

func TestConfigureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "babybrowser.log")
	logger := log.New()
	w, err := configure(logger, Options{Level: "debug", File: path, MaxSize: 1, MaxAge: 1})
	if err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	lj, ok := w.(*lumberjack.Logger)
	if !ok {
		t.Fatalf("Expected *lumberjack.Logger, got %T", w)
	}
	defer lj.Close()

	logger.Info("loaded atlas")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "loaded atlas") {
		t.Errorf("Expected log message in file, got %q", data)
	}
}

func TestConfigureBadLevel(t *testing.T) {
	if _, err := configure(log.New(), Options{Level: "loud"}); err == nil {
		t.Fatal("Expected error for unknown level")
	}
}
