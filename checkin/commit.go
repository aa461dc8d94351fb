package checkin

import (
	"time"

	"github.com/sirupsen/logrus"

	corevcs "github.com/rcowham/corevcs"
	"github.com/rcowham/corevcs/blobstore"
	"github.com/rcowham/corevcs/catalog"
	"github.com/rcowham/corevcs/crosslink"
	"github.com/rcowham/corevcs/manifest"
)

// Request describes one proposed commit, already past file selection and
// content ingestion: Files is the complete post-commit tree (for baseline
// reconstruction and the R-card check), DiskFiles is what disk actually
// holds right now for the same comparison.
type Request struct {
	Files             []manifest.FileEntry // complete resulting tree
	DiskFiles         []manifest.FileEntry // same tree as read from the working copy
	ParentFiles       []manifest.FileEntry // parent baseline's complete file list, for the delta form's diff
	Parents           []string             // parent commit hashes
	ParentRid         int64
	Comment           string
	User              string
	Date              time.Time
	Tags              []manifest.TagCard
	BaselineFileCount int // parent baseline's F-card count, for ChooseForm
	ForceForm         FormChoice
	AllowDelta        bool // repository-wide "forbid delta manifests" setting, inverted
	Guards            GuardInput
}

// Result is what a successful Commit produced.
type Result struct {
	Rid  int64
	Hash string
	Form FormChoice
}

// Commit runs §4.4.4 through §4.4.6: choose a manifest form, verify the
// double R-card checksum, store the manifest, crosslink it, and advance the
// checkout. Everything happens inside one outer repo transaction; any
// failure rolls the whole thing back.
func Commit(repo *catalog.RepoDB, checkout *catalog.CheckoutDB, store *blobstore.Store, logger *logrus.Logger, req Request) (Result, error) {
	if err := RunGuards(req.Guards); err != nil {
		return Result{}, err
	}

	diskChecksum := manifest.ComputeChecksum(req.DiskFiles)
	storedChecksum := manifest.ComputeChecksum(req.Files)
	if diskChecksum != storedChecksum {
		return Result{}, corevcs.Newf(corevcs.Integrity, "checkin.Commit",
			"tree checksum from disk (%s) does not match checksum from stored blobs (%s)", diskChecksum, storedChecksum)
	}

	forceForm := req.ForceForm
	if len(req.Parents) == 0 {
		forceForm = FormBaseline // a root commit has no baseline to delta against
	}
	changed, removed := DiffFiles(req.ParentFiles, req.Files)
	form := ChooseForm(req.BaselineFileCount, len(changed)+len(removed)+1, forceForm, req.AllowDelta)

	var m *manifest.Manifest
	switch form {
	case FormDelta:
		m = BuildDelta(req.Parents[0], changed, removed, req.Parents, req.Comment, req.User, req.Date, req.Tags)
	default:
		m = BuildBaseline(req.Files, req.Parents, req.Comment, req.User, req.Date, req.Tags)
	}
	m.Checksum = storedChecksum

	raw, err := manifest.Encode(m)
	if err != nil {
		return Result{}, err
	}

	decoded, err := manifest.Decode(raw)
	if err != nil {
		return Result{}, corevcs.Wrap(corevcs.Integrity, "checkin.Commit", err)
	}
	if decoded.Checksum != storedChecksum {
		return Result{}, corevcs.Newf(corevcs.Integrity, "checkin.Commit",
			"R-card in encoded manifest (%s) does not match computed checksum (%s)", decoded.Checksum, storedChecksum)
	}

	if err := repo.Begin(); err != nil {
		return Result{}, corevcs.Wrap(corevcs.IO, "checkin.Commit", err)
	}
	rollback := func(cause error) (Result, error) {
		if rbErr := repo.Rollback(); rbErr != nil {
			logger.Errorf("checkin: rollback failed: %v", rbErr)
		}
		return Result{}, cause
	}

	rid, err := store.Put(raw, false, 0, "")
	if err != nil {
		return rollback(corevcs.Wrap(corevcs.IO, "checkin.Commit", err))
	}

	linker := crosslink.NewLinker(repo, logger)
	if err := linker.Begin(); err != nil {
		return rollback(err)
	}
	if err := linker.Apply(rid, raw); err != nil {
		linker.Abort()
		return rollback(err)
	}
	if err := linker.End(false); err != nil {
		return rollback(err)
	}

	if err := collapseCheckout(checkout, req.Files); err != nil {
		return rollback(err)
	}
	if err := checkout.SetCheckoutScalar(rid); err != nil {
		return rollback(err)
	}

	if err := repo.Commit(); err != nil {
		return Result{}, corevcs.Wrap(corevcs.IO, "checkin.Commit", err)
	}

	return Result{Rid: rid, Hash: store.Hash(raw), Form: form}, nil
}

// collapseCheckout applies §4.4.6's post-commit checkout update: committed
// files become the new baseline (chnged/deleted/origname cleared), and
// vmerge is emptied.
func collapseCheckout(checkout *catalog.CheckoutDB, files []manifest.FileEntry) error {
	for _, f := range files {
		v, ok, err := checkout.GetVFile(f.Path)
		if err != nil {
			return err
		}
		if !ok {
			v = catalog.VFile{Pathname: f.Path}
		}
		if v.Mrid != 0 {
			v.Rid = v.Mrid
			v.Mrid = 0
		}
		v.Origname = ""
		v.Chnged = false
		v.Deleted = f.Hash == ""
		if err := checkout.UpsertVFile(v); err != nil {
			return err
		}
	}
	return checkout.ClearVMerge()
}
