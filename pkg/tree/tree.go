// Package tree builds a browsable hierarchy from a flat card listing.
package tree

import (
	"strings"

	"github.com/cardcontact/cardfs/pkg/models"
)

// Node is a directory or file in the card hierarchy.
type Node struct {
	Entry    models.Entry `json:"entry"`
	Name     string       `json:"name"`
	Path     string       `json:"path"`
	Children []*Node      `json:"children,omitempty"`
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n.Entry.IsDir()
}

// Build arranges normalized entries under root. Directories come from
// {3F00, id} entries of directory kind; files attach to the directory named
// by their parent pair. Files whose directory is not listed are dropped.
func Build(root models.Entry, entries []models.Entry) *Node {
	top := &Node{Entry: root, Name: models.RootID.String(), Path: "/"}
	dirs := map[models.FileID]*Node{models.RootID: top}

	for _, e := range entries {
		if e.IsDir() && e.ID != models.RootObjectID {
			n := &Node{Entry: e, Name: e.Name(), Path: BuildChildPath("/", e.Name())}
			top.Children = append(top.Children, n)
			dirs[e.ID.Child()] = n
		}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		parent, ok := dirs[e.ID.Parent()]
		if !ok {
			continue
		}
		parent.Children = append(parent.Children, &Node{
			Entry: e,
			Name:  e.Name(),
			Path:  BuildChildPath(parent.Path, e.Name()),
		})
	}
	return top
}

// FindByPath resolves a path in the tree (recursive). Matching is case-insensitive.
func FindByPath(root *Node, path string) *Node {
	if root == nil {
		return nil
	}
	if strings.EqualFold(root.Path, path) {
		return root
	}
	for _, child := range root.Children {
		if found := FindByPath(child, path); found != nil {
			return found
		}
	}
	return nil
}

// FindByID finds a node by its object identifier (recursive).
func FindByID(root *Node, id models.ObjectID) *Node {
	if root == nil {
		return nil
	}
	if root.Entry.ID == id {
		return root
	}
	for _, child := range root.Children {
		if found := FindByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

// Child returns the direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// CountNodes counts all nodes in a tree.
func CountNodes(root *Node) int {
	if root == nil {
		return 0
	}
	count := 1
	for _, child := range root.Children {
		count += CountNodes(child)
	}
	return count
}

// BuildChildPath constructs a child path from parent + name.
func BuildChildPath(parentPath, name string) string {
	if parentPath == "/" {
		return "/" + name
	}
	return parentPath + "/" + name
}

// Flatten returns all nodes in a flat map keyed by path.
func Flatten(root *Node) map[string]*Node {
	result := make(map[string]*Node)
	if root == nil {
		return result
	}
	flattenRecursive(root, result)
	return result
}

func flattenRecursive(node *Node, result map[string]*Node) {
	result[node.Path] = node
	for _, child := range node.Children {
		flattenRecursive(child, result)
	}
}
