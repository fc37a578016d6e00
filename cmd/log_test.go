package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/PolarWolf314/agedit/internal/audit"
)

func TestLogCommandDefault(t *testing.T) {
	env := newCLIEnv(t, "api.age")
	path := env.writeSecret(t, "api.age", "hunter2\n")

	if output, err := runCommand(t, "edit", path); err != nil {
		t.Fatalf("edit failed: %v\noutput: %s", err, output)
	}

	output, err := runCommand(t, "log")
	if err != nil {
		t.Fatalf("log failed: %v\noutput: %s", err, output)
	}

	for _, want := range []string{"open", "save", path, "1 recipient(s)"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestLogCommandJSON(t *testing.T) {
	env := newCLIEnv(t, "api.age")
	path := env.writeSecret(t, "api.age", "hunter2\n")

	if output, err := runCommand(t, "edit", path); err != nil {
		t.Fatalf("edit failed: %v\noutput: %s", err, output)
	}

	output, err := runCommand(t, "log", "--json")
	if err != nil {
		t.Fatalf("log --json failed: %v\noutput: %s", err, output)
	}

	var entries []audit.Entry
	if err := json.Unmarshal([]byte(output), &entries); err != nil {
		t.Fatalf("log --json produced invalid JSON: %v\noutput: %s", err, output)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[0].Operation != "open" || entries[1].Operation != "save" {
		t.Errorf("operations = %s, %s, want open, save", entries[0].Operation, entries[1].Operation)
	}
	for _, e := range entries {
		if e.File != path {
			t.Errorf("entry file = %q, want %q", e.File, path)
		}
		if e.Session == "" || e.User == "" || e.Timestamp == "" {
			t.Errorf("entry missing session, user, or timestamp: %+v", e)
		}
	}
	if entries[0].Session != entries[1].Session {
		t.Errorf("open and save have different sessions: %q vs %q",
			entries[0].Session, entries[1].Session)
	}
}

func TestLogCommandFilters(t *testing.T) {
	env := newCLIEnv(t, "api.age", "db.age")
	apiPath := env.writeSecret(t, "api.age", "a\n")
	dbPath := env.writeSecret(t, "db.age", "b\n")

	for _, path := range []string{apiPath, dbPath} {
		if output, err := runCommand(t, "edit", path); err != nil {
			t.Fatalf("edit %s failed: %v\noutput: %s", path, err, output)
		}
	}

	output, err := runCommand(t, "log", "--operation", "save")
	if err != nil {
		t.Fatalf("log --operation failed: %v\noutput: %s", err, output)
	}
	if strings.Contains(output, "open") {
		t.Errorf("operation filter leaked open entries:\n%s", output)
	}
	if got := strings.Count(output, "save"); got != 2 {
		t.Errorf("got %d save entries, want 2:\n%s", got, output)
	}

	output, err = runCommand(t, "log", "--file", "db")
	if err != nil {
		t.Fatalf("log --file failed: %v\noutput: %s", err, output)
	}
	if strings.Contains(output, apiPath) {
		t.Errorf("file filter leaked api.age entries:\n%s", output)
	}
	if got := strings.Count(output, dbPath); got != 2 {
		t.Errorf("got %d db.age entries, want 2:\n%s", got, output)
	}

	output, err = runCommand(t, "log", "--operation", "rekey")
	if err != nil {
		t.Fatalf("log --operation rekey failed: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "No audit trail entries found matching the filters.") {
		t.Errorf("expected the no-match message:\n%s", output)
	}
}

func TestLogCommandLimitKeepsMostRecent(t *testing.T) {
	env := newCLIEnv(t, "api.age")
	path := env.writeSecret(t, "api.age", "hunter2\n")

	if output, err := runCommand(t, "edit", path); err != nil {
		t.Fatalf("edit failed: %v\noutput: %s", err, output)
	}

	output, err := runCommand(t, "log", "-n", "1")
	if err != nil {
		t.Fatalf("log -n 1 failed: %v\noutput: %s", err, output)
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1:\n%s", len(lines), output)
	}
	if !strings.Contains(lines[0], "save") {
		t.Errorf("limit should keep the most recent entry, got:\n%s", lines[0])
	}
}

func TestLogCommandOneline(t *testing.T) {
	env := newCLIEnv(t, "api.age")
	path := env.writeSecret(t, "api.age", "hunter2\n")

	if output, err := runCommand(t, "edit", path); err != nil {
		t.Fatalf("edit failed: %v\noutput: %s", err, output)
	}

	output, err := runCommand(t, "log", "--oneline")
	if err != nil {
		t.Fatalf("log --oneline failed: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "api.age") {
		t.Errorf("output missing the secret name:\n%s", output)
	}
	if strings.Contains(output, env.root) {
		t.Errorf("oneline should print base names, not full paths:\n%s", output)
	}
}

func TestLogCommandEmptyTrail(t *testing.T) {
	newCLIEnv(t)

	output, err := runCommand(t, "log")
	if err != nil {
		t.Fatalf("log failed: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "No audit trail entries found.") {
		t.Errorf("expected the empty-trail message:\n%s", output)
	}
}
