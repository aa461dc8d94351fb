package checkin

import (
	"time"

	"github.com/rcowham/corevcs/manifest"
)

// FormChoice is which shape the engine picked for a new manifest (§4.4.4).
type FormChoice int

const (
	FormAuto FormChoice = iota
	FormBaseline
	FormDelta
)

// ChooseForm implements the §4.4.4 formula: the delta is chosen iff
// D*D < B*3 - 9, where B is the parent baseline's F-card count and D is the
// candidate delta's F-card count including its B-card. force overrides the
// formula when it names FormBaseline or FormDelta; allowDelta=false (a
// repository-wide setting) forbids delta manifests outright regardless of
// force.
//
// The constant 3 models an expected X = 3 new F-cards per future delta:
// B*3 - 9 is B*X - X*X with X = 3. Kept verbatim from the original
// implementation rather than made configurable.
func ChooseForm(baselineFileCount, deltaFileCount int, force FormChoice, allowDelta bool) FormChoice {
	if !allowDelta {
		return FormBaseline
	}
	if force == FormBaseline || force == FormDelta {
		return force
	}
	b := baselineFileCount
	d := deltaFileCount
	if d*d < b*3-9 {
		return FormDelta
	}
	return FormBaseline
}

// BuildBaseline assembles a full F-card manifest from the complete file set.
func BuildBaseline(files []manifest.FileEntry, parents []string, comment, user string, date time.Time, tags []manifest.TagCard) *manifest.Manifest {
	return &manifest.Manifest{
		Files:   files,
		Parents: parents,
		Comment: comment,
		User:    user,
		Date:    date,
		Tags:    tags,
	}
}

// DiffFiles computes the changed/removed sets a delta manifest needs
// (§4.4.4): changed is every entry in files whose path is new relative to
// parent or whose hash/perm/oldpath differs from parent's entry at that
// path; removed is every parent path absent from files. Passing the
// complete new file set as "changed" with no removed set (skipping this
// diff) would make BuildDelta emit every F-card anyway, defeating the
// point of choosing the delta form.
func DiffFiles(parent, files []manifest.FileEntry) (changed []manifest.FileEntry, removed []string) {
	parentByPath := make(map[string]manifest.FileEntry, len(parent))
	for _, f := range parent {
		parentByPath[f.Path] = f
	}
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f.Path] = true
		if p, ok := parentByPath[f.Path]; !ok || p.Hash != f.Hash || p.Perm != f.Perm || p.OldPath != f.OldPath {
			changed = append(changed, f)
		}
	}
	for _, p := range parent {
		if !seen[p.Path] {
			removed = append(removed, p.Path)
		}
	}
	return changed, removed
}

// BuildDelta assembles a delta manifest against baselineHash: only the
// files that differ from the parent's tree are listed, with Hash=="" for
// paths removed relative to the baseline (§3.2's "Hash=='' means removed").
func BuildDelta(baselineHash string, changed []manifest.FileEntry, removed []string, parents []string, comment, user string, date time.Time, tags []manifest.TagCard) *manifest.Manifest {
	files := append([]manifest.FileEntry(nil), changed...)
	for _, path := range removed {
		files = append(files, manifest.FileEntry{Path: path})
	}
	return &manifest.Manifest{
		Files:    files,
		Parents:  parents,
		Comment:  comment,
		User:     user,
		Date:     date,
		Tags:     tags,
		Baseline: baselineHash,
	}
}
