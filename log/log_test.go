package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestResolveDirFlagPriority(t *testing.T) {
	t.Setenv("PARLEY_LOG_PATH", "/env/path")
	got, err := ResolveDir("/flag/path")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/flag/path" {
		t.Errorf("ResolveDir = %q, want flag path", got)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("PARLEY_LOG_PATH", "/env/path")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/env/path" {
		t.Errorf("ResolveDir = %q, want env path", got)
	}
}

func TestResolveDirRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("ResolveDir(%q) = %q, want absolute", "logs", got)
	}
}

func TestLevelHelpers(t *testing.T) {
	SetDir(t.TempDir())
	if err := Init("debug"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	Info("plain info")
	Infof("formatted %s", "info")
	Warn("plain warn")
	Warnf("formatted %s", "warn")
	Errorf("formatted %s", "error")
	Close()

	diag, err := os.ReadFile(filepath.Join(Dir(), "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"plain info", "formatted info", "plain warn", "formatted warn", "formatted error"} {
		if !strings.Contains(string(diag), want) {
			t.Errorf("diagnostics log missing %q", want)
		}
	}
}

func TestInitAndTranscript(t *testing.T) {
	SetDir(t.TempDir())
	if err := Init("info"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Close()

	SessionStart("abc", "fake mic")
	SessionEnd("abc", "silence", 2*time.Second, 3)
	TranscriptionText("hello world")
	Close()

	data, err := os.ReadFile(filepath.Join(Dir(), "transcript_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello world") {
		t.Errorf("transcript log missing text: %q", data)
	}

	diag, err := os.ReadFile(filepath.Join(Dir(), "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(diag), "session_end") {
		t.Errorf("diagnostics log missing session_end: %q", diag)
	}
	if strings.Contains(string(diag), "hello world") {
		t.Error("transcript text leaked into diagnostics log")
	}
}
