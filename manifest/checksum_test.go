package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeChecksumOrderIndependent(t *testing.T) {
	a := []FileEntry{{Path: "b.txt", Hash: "bbb"}, {Path: "a.txt", Hash: "aaa"}}
	b := []FileEntry{{Path: "a.txt", Hash: "aaa"}, {Path: "b.txt", Hash: "bbb"}}
	assert.Equal(t, ComputeChecksum(a), ComputeChecksum(b))
}

func TestComputeChecksumIgnoresRemovedEntries(t *testing.T) {
	withRemoved := []FileEntry{{Path: "a.txt", Hash: "aaa"}, {Path: "b.txt"}}
	withoutRemoved := []FileEntry{{Path: "a.txt", Hash: "aaa"}}
	assert.Equal(t, ComputeChecksum(withRemoved), ComputeChecksum(withoutRemoved))
}

func TestComputeChecksumDiffersOnContentChange(t *testing.T) {
	a := []FileEntry{{Path: "a.txt", Hash: "aaa"}}
	b := []FileEntry{{Path: "a.txt", Hash: "zzz"}}
	assert.NotEqual(t, ComputeChecksum(a), ComputeChecksum(b))
}
