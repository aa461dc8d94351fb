//go:build !windows

package platform

import (
	"os"
	"os/exec"
	"syscall"
)

// SpawnDetached forks argv as a session-leading child whose stdio is
// redirected to /dev/null, then returns immediately with the child's pid.
// Mirrors backoffice_run_if_needed's unix branch: fork, setsid, reopen fds
// 0-2 on /dev/null, exec.
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
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	// The parent does not wait; an orphaned child is reaped by init/pid 1.
	// Release so the Go runtime stops tracking it as a child we must Wait on.
	pid = cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// ProcessAlive probes liveness of pid the way backofficeProcessExists does:
// kill(pid, 0) == 0 means "alive or at least addressable". This can return
// true for a pid that has since been recycled by the OS; §9's Open
// Questions note the lease timeout is what bounds the resulting hazard,
// this probe does not attempt to disambiguate it.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

// SelfPID returns the current process's id, the value a candidate writes
// into idCurrent/idNext.
func SelfPID() int {
	return os.Getpid()
}
