//go:build windows

package platform

import (
	"os"
	"os/exec"
)

// SpawnDetached launches argv as a background process, redirecting stdio to
// NUL. Mirrors backoffice_run_if_needed's Windows branch (_wspawnv with
// _P_NOWAIT) without fork's copy-on-write semantics, since Windows has no
// fork: CreateProcess is already "start and return".
func SpawnDetached(argv []string) (pid int, err error) {
	if len(argv) == 0 {
		return 0, os.ErrInvalid
	}
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, err
	}
	defer devNull.Close()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid = cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// ProcessAlive probes liveness via OpenProcess through os.FindProcess, which
// on Windows actually validates the handle (unlike unix FindProcess, which
// always succeeds).
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}

// SelfPID returns the current process's id.
func SelfPID() int {
	return os.Getpid()
}
