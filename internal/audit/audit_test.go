package audit

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PolarWolf314/agedit/internal/config"
	logger "github.com/PolarWolf314/agedit/internal/logging"
)

func TestTrail_RecordsEntries(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	trail := NewTrail(config.Default(), logger.Logger{})
	if trail.Session() == "" {
		t.Fatal("expected a session id on an enabled trail")
	}

	trail.Record("open", "/repo/secret.age", 2, "")
	trail.Record("save", "/repo/secret.age", 2, "/keys/id_rsa")

	entries, err := ReadEntries()
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0].Operation != "open" || entries[1].Operation != "save" {
		t.Errorf("operations: got %q, %q", entries[0].Operation, entries[1].Operation)
	}
	if entries[0].Session != trail.Session() || entries[1].Session != trail.Session() {
		t.Error("entries must share the invocation session id")
	}
	if entries[0].Timestamp == "" {
		t.Error("expected a timestamp")
	}
	if entries[1].Identity != "/keys/id_rsa" {
		t.Errorf("identity: got %q", entries[1].Identity)
	}
	if entries[0].Recipients != 2 {
		t.Errorf("recipients: got %d", entries[0].Recipients)
	}
}

func TestTrail_Disabled(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	cfg := config.Default()
	cfg.AuditLog = false
	trail := NewTrail(cfg, logger.Logger{})

	trail.Record("open", "/repo/secret.age", 1, "")

	path, err := LogPath()
	if err != nil {
		t.Fatalf("LogPath failed: %v", err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("disabled trail must not write a log file")
	}
}

func TestTrail_WriteFailureWarns(t *testing.T) {
	// A file where the state directory should be makes every write fail.
	stateHome := filepath.Join(t.TempDir(), "state")
	if err := os.WriteFile(stateHome, []byte("not a directory"), 0600); err != nil {
		t.Fatalf("failed to write blocker file: %v", err)
	}
	t.Setenv("XDG_STATE_HOME", stateHome)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	oldStderr := os.Stderr
	os.Stderr = w

	trail := NewTrail(config.Default(), logger.Logger{})
	trail.Record("open", "/repo/secret.age", 1, "")

	w.Close()
	os.Stderr = oldStderr
	captured, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read captured stderr: %v", err)
	}

	if !strings.Contains(string(captured), "audit log write failed") {
		t.Errorf("expected a warning about the failed write, got: %q", captured)
	}
}

func TestTrail_NilIsSafe(t *testing.T) {
	var trail *Trail
	trail.Record("open", "x", 0, "")
	if trail.Session() != "" {
		t.Error("nil trail session should be empty")
	}
}

func TestReadEntries_MissingLog(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	entries, err := ReadEntries()
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	if entries != nil {
		t.Errorf("expected empty history, got %v", entries)
	}
}

func TestParseEntries_SkipsMalformed(t *testing.T) {
	data := []byte(`{"ts":"2026-01-02T03:04:05.000000Z","op":"open"}
this line is not JSON
{"ts":"2026-01-02T03:04:06.000000Z","op":"save"}
`)

	entries := ParseEntries(data)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Operation != "open" || entries[1].Operation != "save" {
		t.Errorf("operations: got %q, %q", entries[0].Operation, entries[1].Operation)
	}
}

func TestParseEntries_Empty(t *testing.T) {
	if entries := ParseEntries(nil); entries != nil {
		t.Errorf("expected nil for empty data, got %v", entries)
	}
}

func TestLogPath_UnderStateDir(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_STATE_HOME", base)

	path, err := LogPath()
	if err != nil {
		t.Fatalf("LogPath failed: %v", err)
	}
	if path != filepath.Join(base, "agedit", "audit.jsonl") {
		t.Errorf("unexpected log path: %s", path)
	}
}
