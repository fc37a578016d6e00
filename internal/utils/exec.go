package utils

import (
	"os/exec"
	"strings"
)

// CommandFailure returns the most useful one-line description of a failed
// external command: the trimmed stderr capture when the tool wrote one,
// otherwise the exec error itself. Tools like age and ssh-keygen put the
// real diagnosis on stderr and the exit status carries nothing.
func CommandFailure(err error, stderr []byte) string {
	msg := strings.TrimSpace(string(stderr))
	if msg != "" {
		return msg
	}
	if err != nil {
		return err.Error()
	}
	return "unknown error"
}

// LookProgram resolves an external tool setting to an executable path. A
// setting containing a path separator is used as-is; otherwise it is
// looked up on PATH.
func LookProgram(program string) (string, error) {
	if strings.ContainsRune(program, '/') {
		expanded, err := ExpandPath(program)
		if err != nil {
			return "", err
		}
		return expanded, nil
	}
	return exec.LookPath(program)
}
