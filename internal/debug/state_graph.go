package debug

import (
	"fmt"
	"io"
	"strings"

	"github.com/bradleyjkemp/memviz"

	"nescore/internal/state"
)

// StateNode is one scope of a snapshot. Fields holds "key (n bytes)" labels
// for the values stored directly in the scope.
type StateNode struct {
	Scope    string
	Fields   []string
	Children []*StateNode
}

// BuildStateTree groups snapshot keys by their dotted scopes
func BuildStateTree(snap state.Snapshot) *StateNode {
	root := &StateNode{Scope: "console"}
	index := map[string]*StateNode{"": root}

	for _, key := range snap.Keys() {
		parts := strings.Split(key, ".")
		parent := root
		for i := range parts[:len(parts)-1] {
			path := strings.Join(parts[:i+1], ".")
			node, ok := index[path]
			if !ok {
				node = &StateNode{Scope: parts[i]}
				index[path] = node
				parent.Children = append(parent.Children, node)
			}
			parent = node
		}
		parent.Fields = append(parent.Fields, fmt.Sprintf("%s (%d bytes)", parts[len(parts)-1], len(snap[key])))
	}
	return root
}

// WriteStateGraph writes a Graphviz dot rendering of the snapshot layout
func WriteStateGraph(w io.Writer, snap state.Snapshot) {
	memviz.Map(w, BuildStateTree(snap))
}
