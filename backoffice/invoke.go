package backoffice

import (
	"github.com/sirupsen/logrus"

	"github.com/rcowham/corevcs/platform"
)

// Trigger implements §4.5.4: called after a repository-mutating request
// completes and the repository database handle is closed. It forks a
// detached child running backofficeArgv (argv[0] is a re-invocation of the
// host binary with whatever subcommand runs the state machine headless,
// e.g. "corevcs backoffice-worker") and returns immediately. If spawning
// fails — the platform.SpawnDetached build carries the real unix/windows
// split, so failure here means something more fundamental is wrong — the
// state machine runs in-process instead, with NoDelay forced on since there
// is no detached child left to pick the work up later.
func Trigger(repoPath string, backofficeArgv []string, logger *logrus.Logger, inProcess func(noDelay bool) error) {
	argv := append(append([]string(nil), backofficeArgv...), repoPath)
	if _, err := platform.SpawnDetached(argv); err == nil {
		return
	} else {
		logger.Warnf("backoffice: spawn detached worker failed, running in-process: %v", err)
	}

	if err := inProcess(true); err != nil {
		logger.Warnf("backoffice: in-process run failed: %v", err)
	}
}
