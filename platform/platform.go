// Package platform is the §9 "subprocess control" abstraction: two
// operations, SpawnDetached for the backoffice scheduler child and
// RunForeground for an editor-style helper, plus the process-liveness probe
// the backoffice lease protocol needs (§4.5.5). Grounded on
// original_source/src/backoffice.c's backoffice_run_if_needed (fork +
// setsid + fd redirection on unix, _wspawnv on Windows, in-process fallback
// with no-delay forced when neither is available) and on the teacher's
// habit of keeping OS-specific concerns in their own small function rather
// than branching inline throughout business logic.
package platform

import (
	"os"
	"os/exec"
)

// RunForeground runs argv to completion with env appended to the current
// process's environment, connecting its std streams to the caller's, and
// returns its exit status. Used for the check-in engine's external editor
// and diff/merge helper invocations (§9).
func RunForeground(argv []string, env []string) (int, error) {
	if len(argv) == 0 {
		return -1, os.ErrInvalid
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), env...)
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
