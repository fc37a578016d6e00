package session

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/PolarWolf314/agedit/internal/age"
	"github.com/PolarWolf314/agedit/internal/config"
	aerrors "github.com/PolarWolf314/agedit/internal/errors"
	logger "github.com/PolarWolf314/agedit/internal/logging"
	"github.com/PolarWolf314/agedit/internal/registry"
	"github.com/PolarWolf314/agedit/internal/utils"
)

// Session is the lifecycle of one secret being edited: resolve who may
// read it, decrypt it into a host document, track edits, and save it back
// encrypted. A session serves exactly one file and is not safe for
// concurrent use; every operation blocks until its subprocesses finish.
type Session struct {
	cfg      *config.Config
	path     string
	host     Host
	prompter Prompter
	log      logger.Logger

	state      State
	recipients []string
	created    bool
}

// New returns a closed session for the secret at path. Nothing touches
// the filesystem until Open.
func New(cfg *config.Config, path string, host Host, prompter Prompter, log logger.Logger) *Session {
	return &Session{
		cfg:      cfg,
		path:     path,
		host:     host,
		prompter: prompter,
		log:      log,
		state:    StateClosed,
	}
}

// Open resolves the secret's recipients and loads its plaintext into the
// host. The recipient set is fixed here for the whole session; saving
// never re-reads the rules file.
//
// Resolution failure is fatal: without a trustworthy recipient set a
// later save could encrypt to the wrong keys, so the document is never
// populated and no decryption subprocess is launched. A missing
// ciphertext is the new-secret path: the host gets an empty document and
// the first save creates the file.
func (s *Session) Open(ctx context.Context) error {
	if s.state != StateClosed {
		return fmt.Errorf("%w: cannot open a session in state %s", aerrors.ErrSessionState, s.state)
	}
	s.state = StateOpening

	abs, err := filepath.Abs(s.path)
	if err != nil {
		s.state = StateFailed
		return fmt.Errorf("failed to resolve %s: %w", s.path, err)
	}
	s.path = abs

	recipients, err := registry.RecipientsFor(ctx, s.cfg, s.path)
	if err != nil {
		s.state = StateFailed
		return err
	}
	s.recipients = recipients
	s.log.Debugf("opened recipient set of %d keys for %s", len(recipients), s.path)

	if !utils.FileExists(s.path) {
		if err := s.host.SetPlaintext(nil); err != nil {
			s.state = StateFailed
			return fmt.Errorf("failed to initialize empty document: %w", err)
		}
		s.created = true
		s.state = StateDecryptedClean
		s.log.Infof("creating new secret %s", s.path)
		return nil
	}

	plaintext, err := DecryptForRead(ctx, s.cfg, s.path, s.prompter, s.log)
	if err != nil {
		s.state = StateFailed
		return err
	}
	if err := s.host.SetPlaintext(plaintext); err != nil {
		s.state = StateFailed
		return fmt.Errorf("failed to load document: %w", err)
	}
	s.state = StateDecryptedClean
	return nil
}

// MarkDirty records that the host document has unsaved edits. Called by
// the host layer; a no-op outside DecryptedClean.
func (s *Session) MarkDirty() {
	if s.state == StateDecryptedClean {
		s.state = StateDecryptedDirty
	}
}

// Save encrypts the host's current plaintext to the open-time recipient
// set and replaces the on-disk secret. On success the fresh ciphertext is
// decrypted back into the host (around a view-state checkpoint), so the
// document always mirrors what a future open would load.
//
// An encryption failure is retryable: the prior state is restored and the
// on-disk file is untouched. A failure while reloading after a completed
// save leaves the session Failed; the save itself still happened.
func (s *Session) Save(ctx context.Context) error {
	if s.state != StateDecryptedClean && s.state != StateDecryptedDirty {
		return fmt.Errorf("%w: cannot save a session in state %s", aerrors.ErrSessionState, s.state)
	}
	prior := s.state
	s.state = StateSaving

	if len(s.recipients) == 0 {
		s.state = prior
		return fmt.Errorf("%w: session for %s holds no recipients", aerrors.ErrNoRecipients, s.path)
	}

	plaintext, err := s.host.Plaintext()
	if err != nil {
		s.state = prior
		return fmt.Errorf("failed to read document: %w", err)
	}

	if err := age.Encrypt(ctx, s.cfg, plaintext, s.recipients, s.path); err != nil {
		s.state = prior
		return err
	}

	token, err := s.host.Checkpoint()
	if err != nil {
		s.state = StateFailed
		return fmt.Errorf("saved %s but failed to checkpoint the document: %w", s.path, err)
	}
	fresh, err := DecryptForRead(ctx, s.cfg, s.path, s.prompter, s.log)
	if err != nil {
		s.state = StateFailed
		return fmt.Errorf("saved %s but failed to reload it: %w", s.path, err)
	}
	if err := s.host.SetPlaintext(fresh); err != nil {
		s.state = StateFailed
		return fmt.Errorf("saved %s but failed to reload the document: %w", s.path, err)
	}
	if err := s.host.Restore(token); err != nil {
		s.state = StateFailed
		return fmt.Errorf("saved %s but failed to restore the document view: %w", s.path, err)
	}

	s.created = false
	s.state = StateDecryptedClean
	return nil
}

// Close ends the session and drops its plaintext references. Valid from
// any state.
func (s *Session) Close() {
	s.state = StateClosed
	s.recipients = nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Path returns the secret's path, absolute once the session has opened.
func (s *Session) Path() string {
	return s.path
}

// Recipients returns a copy of the open-time recipient set.
func (s *Session) Recipients() []string {
	return slices.Clone(s.recipients)
}

// Created reports whether this session is creating a secret that did not
// exist at open time.
func (s *Session) Created() bool {
	return s.created
}
