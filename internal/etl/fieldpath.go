package etl

import (
	"fmt"
	"strings"
)

// PathSeparator splits a dotted field name into path segments.
const PathSeparator = "."

// FieldPath is a field name split into its segments, e.g. "rooms.price" →
// ["rooms", "price"]. The empty path denotes the whole record.
type FieldPath []string

// ParseFieldPath splits a dotted name. Surrounding whitespace is ignored and
// an empty name yields the empty path.
func ParseFieldPath(name string) FieldPath {
	name = strings.TrimSpace(name)
	if name == "" {
		return FieldPath{}
	}
	return FieldPath(strings.Split(name, PathSeparator))
}

func (p FieldPath) String() string { return strings.Join(p, PathSeparator) }

// Child returns a new path extended by one segment. p is never modified.
func (p FieldPath) Child(segment string) FieldPath {
	out := make(FieldPath, len(p)+1)
	copy(out, p)
	out[len(p)] = segment
	return out
}

// ── Path Table ─────────────────────────────────────────────
// Requested paths are indexed twice: by their joined name for the row
// assembler, and as a segment tree for the expander. In the tree, every
// intermediate segment is a node and the last segment of each path is a
// leaf of its parent node; a segment can be both.

// PathTable maps each requested field path to its declaration index.
// It is immutable once built.
type PathTable struct {
	names []string
	paths []FieldPath
	index map[string]int
	whole int // declaration index of the empty path, -1 if not requested
	root  *segmentNode
}

type segmentNode struct {
	leaves    map[string]int // last segment → declaration index
	leafOrder []string
	nodes     map[string]*segmentNode
	nodeOrder []string
	subtree   []int // declaration indexes of every leaf below this node
}

func newSegmentNode() *segmentNode {
	return &segmentNode{
		leaves: make(map[string]int),
		nodes:  make(map[string]*segmentNode),
	}
}

// BuildPathTable parses the requested field names in declaration order.
// Two names resolving to the same path are rejected.
func BuildPathTable(names []string) (*PathTable, error) {
	t := &PathTable{
		names: make([]string, 0, len(names)),
		paths: make([]FieldPath, 0, len(names)),
		index: make(map[string]int, len(names)),
		whole: -1,
		root:  newSegmentNode(),
	}
	for i, name := range names {
		path := ParseFieldPath(name)
		key := path.String()
		if prev, dup := t.index[key]; dup {
			return nil, fmt.Errorf("duplicate field %q (columns %d and %d)", key, prev+1, i+1)
		}
		t.index[key] = i
		t.names = append(t.names, strings.TrimSpace(name))
		t.paths = append(t.paths, path)
		t.add(path, i)
	}
	return t, nil
}

func (t *PathTable) add(path FieldPath, idx int) {
	if len(path) == 0 {
		t.whole = idx
		return
	}
	node := t.root
	node.subtree = append(node.subtree, idx)
	for _, seg := range path[:len(path)-1] {
		child, ok := node.nodes[seg]
		if !ok {
			child = newSegmentNode()
			node.nodes[seg] = child
			node.nodeOrder = append(node.nodeOrder, seg)
		}
		node = child
		node.subtree = append(node.subtree, idx)
	}
	last := path[len(path)-1]
	node.leaves[last] = idx
	node.leafOrder = append(node.leafOrder, last)
}

// Len is the number of requested paths, i.e. the width of every row.
func (t *PathTable) Len() int { return len(t.paths) }

// Names returns the declared field names in declaration order.
func (t *PathTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Path returns the path declared at index i.
func (t *PathTable) Path(i int) FieldPath { return t.paths[i] }

// Index returns the declaration index of p.
func (t *PathTable) Index(p FieldPath) (int, bool) {
	i, ok := t.index[p.String()]
	return i, ok
}

// IsLeaf reports whether p is exactly one of the requested paths.
func (t *PathTable) IsLeaf(p FieldPath) bool {
	_, ok := t.Index(p)
	return ok
}

// IsPrefix reports whether p is a non-strict prefix of a requested path.
func (t *PathTable) IsPrefix(p FieldPath) bool {
	if len(p) == 0 {
		return len(t.paths) > 0
	}
	if t.IsLeaf(p) {
		return true
	}
	return t.node(p) != nil
}

// node returns the tree node reached by walking p, or nil if no requested
// path passes through p.
func (t *PathTable) node(p FieldPath) *segmentNode {
	node := t.root
	for _, seg := range p {
		node = node.nodes[seg]
		if node == nil {
			return nil
		}
	}
	return node
}
