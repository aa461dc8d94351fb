// Package checkin is the L4 layer (§4.4): turning a working tree into a new
// commit manifest. It is the largest subsystem (status classification, file
// selection, content ingestion with warnings, manifest assembly, pre-commit
// guards, atomic commit) and leans on blobstore, manifest, workdir, and
// crosslink for its parts.
//
// Grounded on the teacher's validateCommit/updateDepotRevs/GitFile
// modify-delete-copy-rename dispatch for the classification and guard
// dispatch idiom, and on original_source/src/checkin.c for the exact
// delta-choice formula and guard ordering.
package checkin

import (
	"bytes"
	"os"

	"github.com/rcowham/corevcs/catalog"
	"github.com/rcowham/corevcs/hashpolicy"
)

// Status is one of the §4.4.1 classification outcomes for a tracked path.
type Status int

const (
	Unchanged Status = iota
	Deleted
	Missing
	NotAFile
	Added
	Edited
	UpdatedByMerge
	AddedByMerge
	UpdatedByIntegrate
	AddedByIntegrate
	Executable
	Symlink
	Unexec
	Unlink
	Conflict
	Renamed
)

func (s Status) String() string {
	switch s {
	case Deleted:
		return "DELETED"
	case Missing:
		return "MISSING"
	case NotAFile:
		return "NOT_A_FILE"
	case Added:
		return "ADDED"
	case Edited:
		return "EDITED"
	case UpdatedByMerge:
		return "UPDATED_BY_MERGE"
	case AddedByMerge:
		return "ADDED_BY_MERGE"
	case UpdatedByIntegrate:
		return "UPDATED_BY_INTEGRATE"
	case AddedByIntegrate:
		return "ADDED_BY_INTEGRATE"
	case Executable:
		return "EXECUTABLE"
	case Symlink:
		return "SYMLINK"
	case Unexec:
		return "UNEXEC"
	case Unlink:
		return "UNLINK"
	case Conflict:
		return "CONFLICT"
	case Renamed:
		return "RENAMED"
	default:
		return "UNCHANGED"
	}
}

var conflictMarkers = [][]byte{
	[]byte("<<<<<<<"),
	[]byte("======="),
	[]byte(">>>>>>>"),
}

func hasConflictMarker(content []byte) bool {
	for _, m := range conflictMarkers {
		if bytes.Contains(content, m) {
			return true
		}
	}
	return false
}

// Entry is the classification result for one tracked path (§4.4.1).
type Entry struct {
	Path   string
	Status Status
}

// Classify reports the §4.4.1 status of every tracked path against the
// filesystem rooted at workRoot. rehash forces content comparison by hash
// rather than the default mtime+size heuristic. Merge/integrate origin is
// taken from the mergeOrigin and integrateOrigin maps, keyed by pathname and
// filled by the caller; a path marked in one of them is reported with the
// merge variant of its status instead of the plain one.
func Classify(vfiles []catalog.VFile, workRoot string, rehash bool, mergeOrigin map[string]bool, integrateOrigin map[string]bool) ([]Entry, error) {
	entries := make([]Entry, 0, len(vfiles))
	for _, v := range vfiles {
		st, err := classifyOne(v, workRoot, rehash, mergeOrigin[v.Pathname], integrateOrigin[v.Pathname])
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Path: v.Pathname, Status: st})
	}
	return entries, nil
}

func classifyOne(v catalog.VFile, workRoot string, rehash, fromMerge, fromIntegrate bool) (Status, error) {
	fullPath := workRoot + "/" + v.Pathname
	info, err := os.Lstat(fullPath)
	if os.IsNotExist(err) {
		if v.Origname != "" {
			return Renamed, nil
		}
		return Missing, nil
	}
	if err != nil {
		return Unchanged, err
	}

	if v.Origname != "" {
		return Renamed, nil
	}

	isLink := info.Mode()&os.ModeSymlink != 0
	if isLink != v.Islink {
		if isLink {
			return Symlink, nil
		}
		return Unlink, nil
	}
	if !info.Mode().IsRegular() && !isLink {
		return NotAFile, nil
	}

	isExe := !isLink && info.Mode()&0o111 != 0
	if isExe != v.Isexe && !isLink {
		if isExe {
			return Executable, nil
		}
		return Unexec, nil
	}

	if v.Rid == 0 {
		if fromMerge {
			return AddedByMerge, nil
		}
		if fromIntegrate {
			return AddedByIntegrate, nil
		}
		return Added, nil
	}

	changed, content, err := contentChanged(v, fullPath, info, rehash)
	if err != nil {
		return Unchanged, err
	}
	if !changed {
		return Unchanged, nil
	}
	if content == nil {
		// The mtime+size heuristic decided this path changed but never
		// read it; §4.4.1's CONFLICT classification still needs the bytes.
		content, err = os.ReadFile(fullPath)
		if err != nil {
			return Unchanged, err
		}
	}
	if hasConflictMarker(content) {
		return Conflict, nil
	}
	if fromMerge {
		return UpdatedByMerge, nil
	}
	if fromIntegrate {
		return UpdatedByIntegrate, nil
	}
	return Edited, nil
}

// contentChanged reports whether fullPath's content differs from v's last
// recorded state. Without rehash it trusts a differing mtime+size as changed
// and an identical pair as unchanged (the default heuristic of §4.4.1);
// rehash always reads and compares content against the stored hash.
func contentChanged(v catalog.VFile, fullPath string, info os.FileInfo, rehash bool) (bool, []byte, error) {
	if !rehash {
		return info.Size() != v.Msize || info.ModTime().Unix() != v.Mtime, nil, nil
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return false, nil, err
	}
	h := hashpolicy.Compute(hashpolicy.SHA1, content)
	return h != v.Mhash, content, nil
}
