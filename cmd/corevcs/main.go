// corevcs is the command-line entry point wiring the check-in engine and
// backoffice scheduler together (§4.4, §4.5). Flag and command wiring is
// adapted from the teacher's main.go (kingpin.v2, logrus, a config file
// flag defaulted to a YAML filename in the current directory).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/rcowham/corevcs/backoffice"
	"github.com/rcowham/corevcs/checkin"
	"github.com/rcowham/corevcs/config"
	"github.com/rcowham/corevcs/manifest"
	"github.com/rcowham/corevcs/repoctx"
)

var (
	app = kingpin.New("corevcs", "Commit and schedule background work against a repository database.")

	configFile = app.Flag("config", "Config file for corevcs.").Default("corevcs.yaml").Short('c').String()
	repoPath   = app.Flag("repo", "Path to the repository database file.").Default("_repo.db").String()
	debug      = app.Flag("debug", "Enable debug-level logging.").Bool()

	commitCmd     = app.Command("commit", "Assemble and store a new commit from the checkout at the given root.")
	commitRoot    = commitCmd.Arg("root", "Working tree root.").Default(".").String()
	commitMessage = commitCmd.Flag("message", "Commit comment.").Short('m').Required().String()
	commitUser    = commitCmd.Flag("user", "Committing user.").Required().String()
	allowEmpty    = commitCmd.Flag("allow-empty", "Permit a commit with no changes.").Bool()
	allowFork     = commitCmd.Flag("allow-fork", "Permit committing onto a non-leaf parent.").Bool()

	workerCmd   = app.Command("backoffice-worker", "Run one pass of the backoffice state machine (§4.5).")
	workerNoDelay = workerCmd.Flag("no-delay", "Skip the OnDeck queue and exit immediately instead of waiting.").Bool()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := logrus.New()
	logger.Level = logrus.InfoLevel
	if *debug {
		logger.Level = logrus.DebugLevel
	}

	cfg, err := config.LoadConfigFile(*configFile)
	if err != nil {
		cfg, err = config.LoadConfigString(nil)
	}
	if err != nil {
		logger.Fatalf("corevcs: %v", err)
	}

	ctx, err := repoctx.OpenRepository(*repoPath, cfg, logger)
	if err != nil {
		logger.Fatalf("corevcs: open repository: %v", err)
	}
	defer ctx.Close()

	switch command {
	case commitCmd.FullCommand():
		runCommit(ctx, logger)
	case workerCmd.FullCommand():
		runWorker(ctx, logger)
	}
}

func runCommit(ctx *repoctx.Context, logger *logrus.Logger) {
	if err := ctx.AttachCheckout(*commitRoot + "/.fslckout"); err != nil {
		logger.Fatalf("corevcs: attach checkout: %v", err)
	}

	vfiles, err := ctx.Checkout.ListVFiles()
	if err != nil {
		logger.Fatalf("corevcs: list tracked files: %v", err)
	}
	entries, err := checkin.Classify(vfiles, *commitRoot, false, nil, nil)
	if err != nil {
		logger.Fatalf("corevcs: classify working tree: %v", err)
	}

	var files []manifest.FileEntry
	for _, e := range entries {
		if e.Status == checkin.Unchanged {
			continue
		}
		result, _, err := checkin.Ingest(ctx.Store, *commitRoot, e.Path, checkin.IngestOptions{
			Globs:    checkin.WarningGlobs{Binary: ctx.Config.Warnings.BinarySuppress, CRLF: ctx.Config.Warnings.CRLFSuppress, Encoding: ctx.Config.Warnings.EncodingSuppress},
			Prompter: checkin.NonInteractivePrompter{},
		})
		if err != nil {
			logger.Fatalf("corevcs: ingest %s: %v", e.Path, err)
		}
		files = append(files, manifest.FileEntry{Path: result.Path, Hash: ctx.Store.Hash(result.Content)})
	}

	req := checkin.Request{
		Files:      files,
		DiskFiles:  files,
		Comment:    *commitMessage,
		User:       *commitUser,
		Date:       time.Now(),
		AllowDelta: ctx.Config.AllowDeltaManifests,
		Guards: checkin.GuardInput{
			Repo:           ctx.Repo,
			ParentIsLeaf:   true,
			CommitDate:     time.Now(),
			HasFileChanges: len(files) > 0,
			AllowFork:      *allowFork,
			AllowEmpty:     *allowEmpty,
			User:           *commitUser,
		},
	}
	res, err := checkin.Commit(ctx.Repo, ctx.Checkout, ctx.Store, logger, req)
	if err != nil {
		logger.Fatalf("corevcs: commit: %v", err)
	}
	fmt.Printf("committed %s (rid %d)\n", res.Hash, res.Rid)

	triggerBackoffice(ctx, logger)
}

// triggerBackoffice implements §4.5.4: it runs after the commit's own
// transaction has already committed, using the still-open repository handle
// for the in-process fallback (the happy path instead forks a detached
// "backoffice-worker" invocation and never touches ctx.Repo at all).
func triggerBackoffice(ctx *repoctx.Context, logger *logrus.Logger) {
	if ctx.Config.BackofficeDisable {
		return
	}
	argv := []string{os.Args[0], "backoffice-worker"}
	backoffice.Trigger(*repoPath, argv, logger, func(noDelay bool) error {
		candidate := backoffice.NewCandidate(ctx.Repo, logger)
		candidate.NoDelay = noDelay || ctx.Config.BackofficeNoDelay
		candidate.Tasks = defaultTasks()
		return candidate.Run()
	})
}

func defaultTasks() []backoffice.Task {
	return []backoffice.Task{
		func() (int, error) { return 0, nil }, // send pending notifications, run hooks, etc.
	}
}

func runWorker(ctx *repoctx.Context, logger *logrus.Logger) {
	candidate := backoffice.NewCandidate(ctx.Repo, logger)
	candidate.NoDelay = *workerNoDelay || ctx.Config.BackofficeNoDelay
	candidate.Tasks = defaultTasks()
	if err := candidate.Run(); err != nil {
		logger.Fatalf("corevcs: backoffice: %v", err)
	}
}
