package etl

// ── Expander ───────────────────────────────────────────────
// Turns one record into flat tuples of field values, one tuple per output
// row. At every map level:
//
//   - scalars on requested leaves form one group that yields exactly one
//     tuple, together with null markers for requested keys that are absent;
//   - each nested map on a requested branch yields the tuples of its own
//     expansion;
//   - each nested sequence yields the concatenation of its elements'
//     tuples (list levels never appear in paths);
//
// and the level's result is the cartesian product of all groups, in the
// order the keys appear in the record. Unrequested branches are skipped.

// FieldValue is one flattened value at its absolute path. Missing marks a
// requested field that the record does not contain.
type FieldValue struct {
	Path    FieldPath
	Value   Value
	Missing bool
}

// Tuple holds the field values of a single output row, in no particular order.
type Tuple []FieldValue

// Expander flattens records against a PathTable.
type Expander struct {
	table *PathTable
}

// NewExpander returns an expander for the given table.
func NewExpander(table *PathTable) *Expander {
	return &Expander{table: table}
}

// Expand flattens a whole record. Every returned tuple contains exactly one
// value per requested path.
func (e *Expander) Expand(rec *Map) []Tuple {
	tuples := e.ExpandAt(rec, FieldPath{})
	if e.table.whole < 0 {
		return tuples
	}
	self := Tuple{{Path: FieldPath{}, Value: MapValue(rec)}}
	return product(self, [][]Tuple{tuples})
}

// ExpandAt flattens rec as if it were found at path at, considering only the
// requested paths below at. If nothing is requested below at the result is a
// single empty tuple.
func (e *Expander) ExpandAt(rec *Map, at FieldPath) []Tuple {
	node := e.table.node(at)
	if node == nil {
		return []Tuple{{}}
	}
	return e.expandMap(rec, at, node)
}

func (e *Expander) expandMap(rec *Map, at FieldPath, node *segmentNode) []Tuple {
	var scalars Tuple

	// Requested keys absent from this map.
	for _, seg := range node.leafOrder {
		if _, ok := rec.Get(seg); !ok {
			scalars = append(scalars, FieldValue{Path: at.Child(seg), Missing: true})
		}
	}
	for _, seg := range node.nodeOrder {
		if _, ok := rec.Get(seg); !ok {
			scalars = append(scalars, e.missing(node.nodes[seg])...)
		}
	}

	var groups [][]Tuple
	for _, entry := range rec.Entries() {
		_, leaf := node.leaves[entry.Key]
		child := node.nodes[entry.Key]
		if !leaf && child == nil {
			continue
		}
		path := at.Child(entry.Key)
		if entry.Value.Kind() == KindScalar {
			if leaf {
				scalars = append(scalars, FieldValue{Path: path, Value: entry.Value})
			}
			if child != nil {
				scalars = append(scalars, e.missing(child)...)
			}
			continue
		}
		groups = append(groups, e.expandValue(entry.Value, path, leaf, child))
	}

	return product(scalars, groups)
}

// expandValue expands a value found at path. leaf reports whether path itself
// is requested; child is the tree node of deeper requested paths, if any.
func (e *Expander) expandValue(v Value, path FieldPath, leaf bool, child *segmentNode) []Tuple {
	switch v.Kind() {
	case KindMap:
		var self Tuple
		if leaf {
			self = Tuple{{Path: path, Value: v}}
		}
		if child == nil {
			return []Tuple{self}
		}
		return product(self, [][]Tuple{e.expandMap(v.Map(), path, child)})

	case KindSequence:
		var out []Tuple
		for _, item := range v.Items() {
			out = append(out, e.expandValue(item, path, leaf, child)...)
		}
		return out

	default:
		var t Tuple
		if leaf {
			t = append(t, FieldValue{Path: path, Value: v})
		}
		if child != nil {
			t = append(t, e.missing(child)...)
		}
		return []Tuple{t}
	}
}

// missing returns a null marker for every requested path below node.
func (e *Expander) missing(node *segmentNode) Tuple {
	t := make(Tuple, 0, len(node.subtree))
	for _, idx := range node.subtree {
		t = append(t, FieldValue{Path: e.table.Path(idx), Missing: true})
	}
	return t
}

// product returns base combined with every choice of one tuple per group.
// Earlier groups vary slowest. An empty group yields no tuples at all.
func product(base Tuple, groups [][]Tuple) []Tuple {
	acc := []Tuple{base}
	for _, g := range groups {
		next := make([]Tuple, 0, len(acc)*len(g))
		for _, a := range acc {
			for _, b := range g {
				t := make(Tuple, 0, len(a)+len(b))
				t = append(t, a...)
				t = append(t, b...)
				next = append(next, t)
			}
		}
		acc = next
	}
	return acc
}
