// Package workdir reconciles a commit's raw Modify/Delete/Rename/Copy
// operations against a branch's known file set (§4.4.2): expanding
// directory-level deletes/renames into their per-file equivalents and
// catching the "rename source without its destination" split described in
// §4.4.2 and §8.
//
// Adapted directly from the teacher's node package: same tree shape, same
// operation set (AddFile/DeleteFile/GetFiles/FindFile), same
// case-insensitive-matching option. Only the caller's idea of what a
// modify/delete/rename means differs — here it is working-tree status
// against a committed tree, not parsed git fast-export commands.
package workdir

import "strings"

// Tree records the set of file paths known to a branch, so check-in
// validation can reconcile rename/delete pairs the way the teacher's Node
// reconciles git's own rename/delete pairs.
type Tree struct {
	Name            string
	Path            string
	IsFile          bool
	CaseInsensitive bool
	Children        []*Tree
}

func (n *Tree) stringEqual(s1, s2 string) bool {
	if n.CaseInsensitive {
		return len(s1) == len(s2) && strings.EqualFold(s1, s2)
	}
	return len(s1) == len(s2) && s1 == s2
}

// NewTree creates an empty tree node, the root of a branch's known files.
func NewTree(name string, caseInsensitive bool) *Tree {
	return &Tree{Name: name, CaseInsensitive: caseInsensitive}
}

// AddSubFile registers fullPath, recursing through subPath's components.
func (n *Tree) AddSubFile(fullPath, subPath string) {
	parts := strings.Split(subPath, "/")
	if len(parts) == 1 {
		for _, c := range n.Children {
			if n.stringEqual(c.Name, parts[0]) {
				return // already registered
			}
		}
		n.Children = append(n.Children, &Tree{Name: parts[0], IsFile: true, Path: fullPath, CaseInsensitive: n.CaseInsensitive})
		return
	}
	for _, c := range n.Children {
		if n.stringEqual(c.Name, parts[0]) {
			c.AddSubFile(fullPath, strings.Join(parts[1:], "/"))
			return
		}
	}
	n.Children = append(n.Children, NewTree(parts[0], n.CaseInsensitive))
	n.Children[len(n.Children)-1].AddSubFile(fullPath, strings.Join(parts[1:], "/"))
}

// DeleteSubFile removes fullPath if present; missing paths are ignored.
func (n *Tree) DeleteSubFile(fullPath, subPath string) {
	parts := strings.Split(subPath, "/")
	if len(parts) == 1 {
		i := 0
		var c *Tree
		found := false
		for i, c = range n.Children {
			if n.stringEqual(c.Name, parts[0]) {
				found = true
				break
			}
		}
		if found && i < len(n.Children) {
			n.Children[i] = n.Children[len(n.Children)-1]
			n.Children = n.Children[:len(n.Children)-1]
		}
		return
	}
	for _, c := range n.Children {
		if n.stringEqual(c.Name, parts[0]) {
			c.DeleteSubFile(fullPath, strings.Join(parts[1:], "/"))
			return
		}
	}
}

// AddFile registers path in the tree.
func (n *Tree) AddFile(path string) { n.AddSubFile(path, path) }

// DeleteFile removes path from the tree.
func (n *Tree) DeleteFile(path string) { n.DeleteSubFile(path, path) }

func (n *Tree) childFiles() []string {
	var files []string
	for _, c := range n.Children {
		if c.IsFile {
			files = append(files, c.Path)
		} else {
			files = append(files, c.childFiles()...)
		}
	}
	return files
}

// GetFiles returns every file under dirName ("" means the whole tree).
func (n *Tree) GetFiles(dirName string) []string {
	var files []string
	if n.Name == "" && dirName == "" {
		return n.childFiles()
	}
	parts := strings.Split(dirName, "/")
	if len(parts) == 1 {
		for _, c := range n.Children {
			if n.stringEqual(c.Name, parts[0]) {
				if c.IsFile {
					files = append(files, c.Path)
				} else {
					files = append(files, c.childFiles()...)
				}
			}
		}
		return files
	}
	for _, c := range n.Children {
		if n.stringEqual(c.Name, parts[0]) {
			return c.GetFiles(strings.Join(parts[1:], "/"))
		}
	}
	return files
}

// FindFile reports whether a single file with the given path is present.
func (n *Tree) FindFile(fileName string) bool {
	parts := strings.Split(fileName, "/")
	dir := ""
	if len(parts) > 1 {
		dir = strings.Join(parts[:len(parts)-1], "/")
	}
	for _, f := range n.GetFiles(dir) {
		if n.stringEqual(f, fileName) {
			return true
		}
	}
	return false
}
