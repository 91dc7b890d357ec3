// Package medialib builds a tree of the playable files under a directory.
package medialib

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/user/replayclipper/pkg/ports"
)

// DefaultExtensions are the file extensions treated as media when none are given.
var DefaultExtensions = []string{".mp4", ".mkv", ".webm", ".mov"}

// Node is a file or directory in a Tree.
type Node struct {
	Name     string
	Path     string
	IsDir    bool
	Children []*Node
}

// Tree is the result of a Scan. It is a plain value owned by the caller.
type Tree struct {
	Root *Node
}

// Scan walks root through fs and keeps files whose extension is in exts.
// Matching is case-insensitive. Hidden entries are skipped, directories
// without media are pruned, and each level lists directories before files,
// both sorted by name.
func Scan(fs ports.FileSystem, root string, exts []string) (*Tree, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}

	root = filepath.Clean(root)
	node, err := scanDir(fs, root, allowed)
	if err != nil {
		return nil, err
	}
	node.Name = filepath.Base(root)
	return &Tree{Root: node}, nil
}

func scanDir(fs ports.FileSystem, dir string, allowed map[string]bool) (*Node, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	node := &Node{Name: filepath.Base(dir), Path: dir, IsDir: true}
	var dirs, files []*Node
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)

		if entry.IsDir() {
			child, err := scanDir(fs, path, allowed)
			if err != nil {
				return nil, err
			}
			if len(child.Children) > 0 {
				dirs = append(dirs, child)
			}
			continue
		}
		if allowed[strings.ToLower(filepath.Ext(name))] {
			files = append(files, &Node{Name: name, Path: path})
		}
	}

	byName := func(nodes []*Node) {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	}
	byName(dirs)
	byName(files)
	node.Children = append(dirs, files...)
	return node, nil
}

// Walk visits every node depth-first in tree order. depth is 0 for the root.
// Returning false from fn skips the node's children.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	if t == nil || t.Root == nil {
		return
	}
	walk(t.Root, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(c, depth+1, fn)
	}
}

// Files returns the paths of all media files in tree order.
func (t *Tree) Files() []string {
	var files []string
	t.Walk(func(n *Node, _ int) bool {
		if !n.IsDir {
			files = append(files, n.Path)
		}
		return true
	})
	return files
}

// Len returns the number of media files in the tree.
func (t *Tree) Len() int {
	return len(t.Files())
}
