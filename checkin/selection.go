package checkin

import (
	corevcs "github.com/rcowham/corevcs"
	"github.com/rcowham/corevcs/workdir"
)

// Selection is the resolved set of paths a commit will include (§4.4.2).
type Selection struct {
	Paths []string
	Full  bool
}

// SelectFiles builds the §4.4.2 selection. modified lists every path
// Classify reported as changed; explicitPaths, when non-empty, requests a
// partial commit restricted to those paths. isMerge marks this commit as a
// merge (multiple parents); renames lists the rename pairs detected between
// the checkout and the working tree; knownPaths is every path the branch
// currently tracks, used to reconcile those renames directory-wise.
//
// A partial commit on a merge is rejected outright. Renames are first
// reconciled as a whole via workdir.ValidateRenames — this rejects a double
// rename (two renames landing on the same destination) regardless of what's
// selected. A partial selection that then splits a surviving rename pair
// (moves one side in, leaves the other out) is rejected with the offending
// pair named.
func SelectFiles(modified []string, explicitPaths []string, isMerge bool, knownPaths []string, renames []workdir.RenameOp) (Selection, error) {
	if err := workdir.ValidateRenames(knownPaths, renames, false); err != nil {
		return Selection{}, err
	}
	if len(explicitPaths) == 0 {
		return Selection{Paths: modified, Full: true}, nil
	}
	if isMerge {
		return Selection{}, corevcs.Newf(corevcs.Conflict, "checkin.SelectFiles", "a partial commit cannot also be a merge commit")
	}

	selected := make(map[string]bool, len(explicitPaths))
	for _, p := range explicitPaths {
		selected[p] = true
	}
	if broken := workdir.SplitRenamePairs(selected, renames); len(broken) > 0 {
		return Selection{}, corevcs.Newf(corevcs.Conflict, "checkin.SelectFiles",
			"partial commit splits rename pair %s -> %s; select both sides or neither",
			broken[0].OldPath, broken[0].NewPath)
	}

	return Selection{Paths: explicitPaths, Full: false}, nil
}
