package workdir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddFindDeleteFile(t *testing.T) {
	tree := NewTree("", false)
	tree.AddFile("src/main.go")
	tree.AddFile("README.md")

	assert.True(t, tree.FindFile("src/main.go"))
	assert.True(t, tree.FindFile("README.md"))
	assert.False(t, tree.FindFile("src/other.go"))

	tree.DeleteFile("src/main.go")
	assert.False(t, tree.FindFile("src/main.go"))
}

func TestGetFilesWholeTree(t *testing.T) {
	tree := NewTree("", false)
	tree.AddFile("a/b/c.txt")
	tree.AddFile("a/d.txt")
	tree.AddFile("e.txt")

	files := tree.GetFiles("")
	assert.ElementsMatch(t, []string{"a/b/c.txt", "a/d.txt", "e.txt"}, files)
}

func TestGetFilesSubdirectory(t *testing.T) {
	tree := NewTree("", false)
	tree.AddFile("a/b/c.txt")
	tree.AddFile("a/d.txt")

	files := tree.GetFiles("a")
	assert.ElementsMatch(t, []string{"a/b/c.txt", "a/d.txt"}, files)
}

func TestCaseInsensitiveMatching(t *testing.T) {
	tree := NewTree("", true)
	tree.AddFile("Src/Main.go")
	assert.True(t, tree.FindFile("src/main.go"))
}

func TestSplitRenamePairsDetectsBrokenPair(t *testing.T) {
	renames := []RenameOp{{OldPath: "old.txt", NewPath: "new.txt"}}

	selectedBoth := map[string]bool{"old.txt": true, "new.txt": true}
	assert.Empty(t, SplitRenamePairs(selectedBoth, renames))

	selectedSourceOnly := map[string]bool{"old.txt": true}
	assert.Len(t, SplitRenamePairs(selectedSourceOnly, renames), 1)

	selectedDestOnly := map[string]bool{"new.txt": true}
	assert.Len(t, SplitRenamePairs(selectedDestOnly, renames), 1)

	selectedNeither := map[string]bool{}
	assert.Empty(t, SplitRenamePairs(selectedNeither, renames))
}
