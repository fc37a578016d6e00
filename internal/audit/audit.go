package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/PolarWolf314/agedit/internal/config"
	logger "github.com/PolarWolf314/agedit/internal/logging"
)

// Entry is one line of the audit trail.
type Entry struct {
	Timestamp string `json:"ts"`      // RFC3339 with microseconds.
	Session   string `json:"session"` // UUID of the CLI invocation.
	User      string `json:"user"`    // OS username.
	Operation string `json:"op"`      // open, create, save, view, rekey.

	// Optional fields depending on operation.
	File       string `json:"file,omitempty"`
	Recipients int    `json:"recipients,omitempty"`
	Identity   string `json:"identity,omitempty"` // Chosen key, when prompted.
}

// Trail records audit entries for one CLI invocation, all sharing a
// session UUID so multi-step operations group together. Recording is
// best-effort: a secret edit never fails because the audit log could not
// be written.
type Trail struct {
	enabled bool
	session string
	user    string
	log     logger.Logger
}

// NewTrail returns a trail honoring the config's audit_log switch.
func NewTrail(cfg *config.Config, log logger.Logger) *Trail {
	trail := &Trail{enabled: cfg.AuditLog, log: log}
	if !trail.enabled {
		return trail
	}

	trail.session = uuid.NewString()
	if current, err := user.Current(); err == nil {
		trail.user = current.Username
	}
	return trail
}

// Session returns the UUID shared by this invocation's entries.
func (t *Trail) Session() string {
	if t == nil {
		return ""
	}
	return t.session
}

// Record appends one entry. identityPath is empty unless the user was
// prompted to pick a key.
func (t *Trail) Record(op, file string, recipients int, identityPath string) {
	if t == nil || !t.enabled {
		return
	}

	entry := Entry{
		Timestamp:  time.Now().UTC().Format("2006-01-02T15:04:05.000000Z"),
		Session:    t.session,
		User:       t.user,
		Operation:  op,
		File:       file,
		Recipients: recipients,
		Identity:   identityPath,
	}
	if err := appendEntry(entry); err != nil {
		t.log.WarnfAlways("audit log write failed: %v", err)
	}
}

func appendEntry(entry Entry) error {
	path, err := LogPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return nil
}

// LogPath returns the audit log location under the agedit state
// directory, creating the directory if needed.
func LogPath() (string, error) {
	dir, err := config.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audit.jsonl"), nil
}

// ReadEntries reads the whole audit log. A missing log is an empty
// history, not an error.
func ReadEntries() ([]Entry, error) {
	path, err := LogPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseEntries(data), nil
}

// ParseEntries parses JSON Lines data into entries, skipping malformed
// lines so one corrupt record cannot hide the rest of the history.
func ParseEntries(data []byte) []Entry {
	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}
			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				continue
			}
			entries = append(entries, entry)
		}
	}
	return entries
}
