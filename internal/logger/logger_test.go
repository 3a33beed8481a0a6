package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewWritesJSONFile(t *testing.T) {
	root := t.TempDir()
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	log, err := New(root, Options{Level: "debug", Dir: "var/log"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("resolved", zap.String("host", "a.com"))
	_ = log.Sync()

	path := filepath.Join(root, "var", "log", time.Now().Format("2006-01-02")+".log")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"resolved"`) || !strings.Contains(string(b), `"host":"a.com"`) {
		t.Fatalf("log content = %s", b)
	}
}

func TestLevelFilter(t *testing.T) {
	root := t.TempDir()
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	log, err := New(root, Options{Level: "warn"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("hidden")
	_ = log.Sync()

	b, _ := os.ReadFile(filepath.Join(root, "logs", time.Now().Format("2006-01-02")+".log"))
	if strings.Contains(string(b), "hidden") {
		t.Fatal("info written at warn level")
	}
}
