package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	aerrors "github.com/PolarWolf314/agedit/internal/errors"
	"github.com/PolarWolf314/agedit/internal/utils"
)

// determinateProfileBin is where Determinate Nix installs its binaries.
// It sits outside PATH by default, so it is checked explicitly after the
// PATH lookup fails.
const determinateProfileBin = "/nix/var/nix/profiles/default/bin"

// findEvaluator resolves the configured Nix evaluator binary. An explicit
// path is used as-is; a bare name is looked up on PATH and then in the
// Determinate Nix profile directory.
func findEvaluator(program string) (string, error) {
	if strings.ContainsRune(program, '/') {
		return utils.ExpandPath(program)
	}
	if path, err := exec.LookPath(program); err == nil {
		return path, nil
	}

	determinatePath := filepath.Join(determinateProfileBin, program)
	if _, err := os.Stat(determinatePath); err == nil {
		return determinatePath, nil
	}
	return "", fmt.Errorf("%s not found on PATH or at %s", program, determinatePath)
}

// evalJSON evaluates a Nix expression with --eval --strict --json and
// decodes the result into out. The evaluator writes its diagnostics to
// stderr; failures surface them wrapped in ErrRulesEval.
func evalJSON(ctx context.Context, program, expr string, out any) error {
	binaryPath, err := findEvaluator(program)
	if err != nil {
		return fmt.Errorf("%w: %v", aerrors.ErrRulesEval, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binaryPath, "--eval", "--strict", "--json", "-E", expr)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", aerrors.ErrRulesEval, utils.CommandFailure(err, stderr.Bytes()))
	}
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), out); err != nil {
		return fmt.Errorf("%w: unexpected evaluator output: %v", aerrors.ErrRulesEval, err)
	}
	return nil
}

// EvaluatorPath exposes evaluator resolution for environment diagnostics.
func EvaluatorPath(program string) (string, error) {
	return findEvaluator(program)
}

// nixString renders s as a Nix string literal. Backslashes, quotes, and
// the ${ interpolation marker are escaped so file paths and rule keys
// always reach the evaluator as data, never as expression fragments.
func nixString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\', '"':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '$':
			if i+1 < len(s) && s[i+1] == '{' {
				b.WriteString(`\${`)
				i++
			} else {
				b.WriteByte(c)
			}
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
