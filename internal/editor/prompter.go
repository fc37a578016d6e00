package editor

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	aerrors "github.com/PolarWolf314/agedit/internal/errors"
	"github.com/PolarWolf314/agedit/internal/ui"
	"github.com/PolarWolf314/agedit/internal/utils"
)

// TerminalPrompter implements session.Prompter on the controlling
// terminal: a numbered identity menu with free-form path entry, and
// hidden passphrase input read from the TTY.
type TerminalPrompter struct {
	// Out receives the menu; defaults to stderr so stdout stays clean for
	// piped plaintext.
	Out io.Writer

	// Preselect, when set, answers the identity menu without prompting.
	// It carries the --identity flag.
	Preselect string

	lastChoice string
}

func (p *TerminalPrompter) out() io.Writer {
	if p.Out != nil {
		return p.Out
	}
	return os.Stderr
}

// ChooseIdentity presents the candidates and returns the selection: a
// number picks from the list, anything else is taken as a path, and an
// empty answer cancels.
func (p *TerminalPrompter) ChooseIdentity(candidates []string) (string, error) {
	if p.Preselect != "" {
		p.lastChoice = p.Preselect
		return p.Preselect, nil
	}

	out := p.out()
	fmt.Fprintln(out, ui.Info.Sprint("At least one identity needs a passphrase."))
	fmt.Fprintln(out, "Select the identity to decrypt with:")
	for i, candidate := range candidates {
		fmt.Fprintf(out, "  %d) %s\n", i+1, ui.Path.Sprint(candidate))
	}

	answer, err := utils.ReadLine(fmt.Sprintf("Identity [1-%d, or a key path]: ", len(candidates)))
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", aerrors.ErrCanceled
	}

	if n, convErr := strconv.Atoi(answer); convErr == nil {
		if n < 1 || n > len(candidates) {
			return "", fmt.Errorf("selection %d is out of range", n)
		}
		p.lastChoice = candidates[n-1]
		return p.lastChoice, nil
	}

	p.lastChoice = answer
	return answer, nil
}

// Passphrase reads the passphrase for the identity with echo disabled,
// from the controlling TTY when there is one so stdin stays free for
// piped input, otherwise from stdin itself.
func (p *TerminalPrompter) Passphrase(identityPath string) ([]byte, error) {
	prompt := fmt.Sprintf("Passphrase for %s: ", ui.Path.Sprint(identityPath))

	var passphrase []byte
	var err error
	if utils.IsTTYAvailable() {
		passphrase, err = utils.ReadPassphraseFromTTY(prompt)
	} else {
		passphrase, err = utils.ReadPassphrase(prompt)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", aerrors.ErrCanceled, err)
	}
	return passphrase, nil
}

// LastChoice returns the identity most recently selected, for reporting.
func (p *TerminalPrompter) LastChoice() string {
	return p.lastChoice
}
