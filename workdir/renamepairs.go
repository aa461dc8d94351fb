package workdir

import corevcs "github.com/rcowham/corevcs"

// RenameOp is one rename detected between the committed tree and the
// working tree: the path moved from OldPath to NewPath.
type RenameOp struct {
	OldPath string
	NewPath string
}

// SplitRenamePairs returns every RenameOp where exactly one side of the
// pair is in the selected path set — the "rename source selected but not
// the destination, or vice versa" rejection of §4.4.2. An empty result
// means the partial commit's selection is rename-consistent.
func SplitRenamePairs(selected map[string]bool, renames []RenameOp) []RenameOp {
	var split []RenameOp
	for _, r := range renames {
		oldIn := selected[r.OldPath]
		newIn := selected[r.NewPath]
		if oldIn != newIn {
			split = append(split, r)
		}
	}
	return split
}

// ValidateRenames replays renames against knownPaths (every path the branch
// currently tracks) using Tree, the directory-level reconciliation §4.4.2
// expects: every rename's source is removed from the tree before any
// destination is checked, so a chain rename (A->B, B->C in the same commit)
// is accepted, but two renames landing on the same destination — or a
// rename destination that collides with a path this commit doesn't also
// remove or rename away — is rejected as a double rename. Tree's
// directory-component storage means a collision is caught the same way
// whether the two paths differ only in their last component or sit under
// entirely different directories.
func ValidateRenames(knownPaths []string, renames []RenameOp, caseInsensitive bool) error {
	tree := NewTree("", caseInsensitive)
	for _, p := range knownPaths {
		tree.AddFile(p)
	}
	for _, r := range renames {
		tree.DeleteFile(r.OldPath)
	}
	for _, r := range renames {
		if tree.FindFile(r.NewPath) {
			return corevcs.Newf(corevcs.Conflict, "workdir.ValidateRenames",
				"rename target %s collides with another tracked or renamed path (double rename)", r.NewPath)
		}
		tree.AddFile(r.NewPath)
	}
	return nil
}
