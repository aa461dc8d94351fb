package manifest

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
)

// ComputeChecksum computes the R-card value (§4.4.6): an MD5 over the
// reconstructed tree, expressed as each file's hash and path joined one per
// line in path order. Both the "from disk" and "from stored blobs"
// reconstructions in §4.4.6 call this over their respective file lists so
// the two results are comparable byte for byte.
func ComputeChecksum(files []FileEntry) string {
	sorted := append([]FileEntry(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	h := md5.New()
	for _, f := range sorted {
		if f.Hash == "" {
			continue // removed in this delta, not part of the reconstructed tree
		}
		h.Write([]byte(f.Hash))
		h.Write([]byte(" "))
		h.Write([]byte(f.Path))
		h.Write([]byte("\n"))
	}
	return hex.EncodeToString(h.Sum(nil))
}
