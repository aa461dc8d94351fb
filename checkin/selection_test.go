package checkin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corevcs "github.com/rcowham/corevcs"
	"github.com/rcowham/corevcs/workdir"
)

func TestSelectFilesFullCommit(t *testing.T) {
	sel, err := SelectFiles([]string{"a.txt", "b.txt"}, nil, false, nil, nil)
	require.NoError(t, err)
	assert.True(t, sel.Full)
	assert.Equal(t, []string{"a.txt", "b.txt"}, sel.Paths)
}

func TestSelectFilesRejectsPartialMerge(t *testing.T) {
	_, err := SelectFiles(nil, []string{"a.txt"}, true, nil, nil)
	require.Error(t, err)
	kind, ok := corevcs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, corevcs.Conflict, kind)
}

func TestSelectFilesRejectsSplitRenamePair(t *testing.T) {
	renames := []workdir.RenameOp{{OldPath: "old.txt", NewPath: "new.txt"}}
	known := []string{"old.txt", "other.txt"}

	_, err := SelectFiles(nil, []string{"old.txt"}, false, known, renames)
	require.Error(t, err)
	kind, ok := corevcs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, corevcs.Conflict, kind)
}

func TestSelectFilesAcceptsWholeRenamePair(t *testing.T) {
	renames := []workdir.RenameOp{{OldPath: "old.txt", NewPath: "new.txt"}}
	known := []string{"old.txt", "other.txt"}

	sel, err := SelectFiles(nil, []string{"old.txt", "new.txt"}, false, known, renames)
	require.NoError(t, err)
	assert.False(t, sel.Full)
}

func TestSelectFilesRejectsDoubleRename(t *testing.T) {
	renames := []workdir.RenameOp{
		{OldPath: "a.txt", NewPath: "c.txt"},
		{OldPath: "b.txt", NewPath: "c.txt"},
	}
	known := []string{"a.txt", "b.txt"}

	_, err := SelectFiles(nil, nil, false, known, renames)
	require.Error(t, err)
	kind, ok := corevcs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, corevcs.Conflict, kind)
}

func TestSelectFilesAcceptsChainRename(t *testing.T) {
	renames := []workdir.RenameOp{
		{OldPath: "a.txt", NewPath: "b.txt"},
		{OldPath: "b.txt", NewPath: "c.txt"},
	}
	known := []string{"a.txt"}

	_, err := SelectFiles(nil, nil, false, known, renames)
	assert.NoError(t, err)
}
