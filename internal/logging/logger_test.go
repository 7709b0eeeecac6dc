package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setupLogging points the package at a temp state dir and guarantees the
// global state is torn back down, since the package is a process singleton.
func setupLogging(t *testing.T, o Options) string {
	t.Helper()
	stateDir := t.TempDir()
	if err := Initialize(stateDir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := Configure(o); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	t.Cleanup(func() {
		CloseAll()
		if err := Configure(Options{}); err != nil {
			t.Errorf("reset Configure: %v", err)
		}
	})
	return stateDir
}

func readCategoryLog(t *testing.T, stateDir string, category Category) string {
	t.Helper()
	date := time.Now().Format("2006-01-02")
	path := filepath.Join(stateDir, "logs", date+"_"+string(category)+".log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log %s: %v", path, err)
	}
	return string(data)
}

func TestInitialize_RequiresStateDir(t *testing.T) {
	if err := Initialize(""); err == nil {
		t.Error("expected error for empty state dir")
	}
}

func TestGet_WritesCategoryFile(t *testing.T) {
	stateDir := setupLogging(t, Options{Debug: true, Level: "debug"})

	Get(CategoryChat).Info("hello %s", "world")
	CloseAll()

	content := readCategoryLog(t, stateDir, CategoryChat)
	if !strings.Contains(content, "[INFO] hello world") {
		t.Errorf("log content missing message: %q", content)
	}
}

func TestGet_DisabledReturnsNoOp(t *testing.T) {
	stateDir := setupLogging(t, Options{Debug: false})

	l := Get(CategoryBot)
	l.Info("should not appear")

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(stateDir, "logs", date+"_bot.log")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no log file when debug disabled, stat err=%v", err)
	}
}

func TestConfigure_LevelFiltering(t *testing.T) {
	stateDir := setupLogging(t, Options{Debug: true, Level: "error"})

	l := Get(CategoryLLM)
	l.Info("info line")
	l.Warn("warn line")
	l.Error("error line")
	CloseAll()

	content := readCategoryLog(t, stateDir, CategoryLLM)
	if strings.Contains(content, "info line") {
		t.Error("info line should be filtered at error level")
	}
	if strings.Contains(content, "warn line") {
		t.Error("warn line should be filtered at error level")
	}
	if !strings.Contains(content, "[ERROR] error line") {
		t.Errorf("error line missing: %q", content)
	}
}

func TestConfigure_CategoryToggle(t *testing.T) {
	setupLogging(t, Options{
		Debug:      true,
		Level:      "debug",
		Categories: map[string]bool{"chat": false},
	})

	if IsCategoryEnabled(CategoryChat) {
		t.Error("chat should be disabled")
	}
	if !IsCategoryEnabled(CategoryBot) {
		t.Error("bot should default to enabled")
	}
}

func TestTimer_StopReturnsElapsed(t *testing.T) {
	setupLogging(t, Options{Debug: true, Level: "debug"})

	timer := StartTimer(CategoryLLM, "test operation")
	time.Sleep(10 * time.Millisecond)
	elapsed := timer.Stop()

	if elapsed < 10*time.Millisecond {
		t.Errorf("elapsed %v, want >= 10ms", elapsed)
	}
}

func TestTimer_StopWithThresholdWarns(t *testing.T) {
	stateDir := setupLogging(t, Options{Debug: true, Level: "debug"})

	timer := StartTimer(CategoryStore, "slow operation")
	time.Sleep(5 * time.Millisecond)
	timer.StopWithThreshold(time.Nanosecond)
	CloseAll()

	content := readCategoryLog(t, stateDir, CategoryStore)
	if !strings.Contains(content, "[WARN]") || !strings.Contains(content, "slow operation") {
		t.Errorf("expected threshold warning, got: %q", content)
	}
}

func TestRequestLogger_TagsLines(t *testing.T) {
	stateDir := setupLogging(t, Options{Debug: true, Level: "debug"})

	rl := NewRequestLogger(CategoryBot, "req-123")
	rl.Info("generation started")
	rl.Error("generation failed")
	CloseAll()

	content := readCategoryLog(t, stateDir, CategoryBot)
	if !strings.Contains(content, "[req=req-123] generation started") {
		t.Errorf("missing tagged info line: %q", content)
	}
	if !strings.Contains(content, "[req=req-123] generation failed") {
		t.Errorf("missing tagged error line: %q", content)
	}
}

func TestCloseAll_AllowsReopen(t *testing.T) {
	stateDir := setupLogging(t, Options{Debug: true, Level: "debug"})

	Get(CategoryServer).Info("first")
	CloseAll()
	Get(CategoryServer).Info("second")
	CloseAll()

	content := readCategoryLog(t, stateDir, CategoryServer)
	if !strings.Contains(content, "first") || !strings.Contains(content, "second") {
		t.Errorf("expected both lines after reopen, got: %q", content)
	}
}
