package etl

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format.
// All sources emit records as ordered maps of Values; the expander
// classifies every Value by its runtime shape, never by a schema.

// Kind is the runtime shape of a Value.
type Kind uint8

const (
	KindScalar   Kind = iota // null, bool, number, text, date-time, identifier
	KindMap                  // nested record
	KindSequence             // ordered list of values
)

func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindSequence:
		return "sequence"
	default:
		return "scalar"
	}
}

// Value is one node of a record tree.
type Value struct {
	kind   Kind
	scalar any
	m      *Map
	items  []Value
}

// Scalar wraps a leaf value. nil is the null scalar.
func Scalar(v any) Value { return Value{kind: KindScalar, scalar: v} }

// MapValue wraps a nested record.
func MapValue(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

// Sequence wraps an ordered list of values.
func Sequence(items ...Value) Value { return Value{kind: KindSequence, items: items} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) Scalar() any { return v.scalar }
func (v Value) Map() *Map { return v.m }
func (v Value) Items() []Value { return v.items }
func (v Value) IsNull() bool { return v.kind == KindScalar && isNullScalar(v.scalar) }
func (v Value) String() string { return fmt.Sprint(v.BSON()) }

// Entry is a single key/value pair of a Map.
type Entry struct {
	Key   string
	Value Value
}

// Map is an ordered record. Keys keep the order the source produced them in.
type Map struct {
	entries []Entry
}

// NewMap builds a Map from entries, in order.
func NewMap(entries ...Entry) *Map {
	return &Map{entries: entries}
}

// Set replaces the value of an existing key or appends a new entry.
func (m *Map) Set(key string, v Value) {
	for i := range m.entries {
		if m.entries[i].Key == key {
			m.entries[i].Value = v
			return
		}
	}
	m.entries = append(m.entries, Entry{Key: key, Value: v})
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	for _, e := range m.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

func (m *Map) Entries() []Entry { return m.entries }
func (m *Map) Len() int { return len(m.entries) }

// ── Conversion ─────────────────────────────────────────────

// ValueOf converts a decoded document value (BSON types, plain Go maps and
// slices, or scalars) into a Value.
func ValueOf(v any) Value {
	switch t := v.(type) {
	case Value:
		return t
	case *Map:
		return MapValue(t)
	case bson.D:
		return MapValue(MapFromBSON(t))
	case bson.M:
		return MapValue(mapFromGo(t))
	case map[string]any:
		return MapValue(mapFromGo(t))
	case bson.Raw:
		var d bson.D
		if err := bson.Unmarshal(t, &d); err != nil {
			return Scalar(t)
		}
		return MapValue(MapFromBSON(d))
	case bson.A:
		return sequenceOf(t)
	case []any:
		return sequenceOf(t)
	case bson.DateTime:
		return Scalar(t.Time().UTC())
	case bson.Null, bson.Undefined:
		return Scalar(nil)
	case int32:
		return Scalar(int64(t))
	case int:
		return Scalar(int64(t))
	case float32:
		return Scalar(float64(t))
	default:
		return Scalar(v)
	}
}

// MapFromBSON converts an ordered BSON document into a Map.
func MapFromBSON(d bson.D) *Map {
	m := &Map{entries: make([]Entry, 0, len(d))}
	for _, e := range d {
		m.entries = append(m.entries, Entry{Key: e.Key, Value: ValueOf(e.Value)})
	}
	return m
}

// mapFromGo converts an unordered Go map; keys are sorted so that the
// resulting row order is reproducible.
func mapFromGo(src map[string]any) *Map {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m := &Map{entries: make([]Entry, 0, len(keys))}
	for _, k := range keys {
		m.entries = append(m.entries, Entry{Key: k, Value: ValueOf(src[k])})
	}
	return m
}

func sequenceOf(src []any) Value {
	items := make([]Value, len(src))
	for i, item := range src {
		items[i] = ValueOf(item)
	}
	return Sequence(items...)
}

// BSON converts the value back to BSON types: bson.D for maps, bson.A for
// sequences and the raw payload for scalars.
func (v Value) BSON() any {
	switch v.kind {
	case KindMap:
		return v.m.BSON()
	case KindSequence:
		a := make(bson.A, len(v.items))
		for i, item := range v.items {
			a[i] = item.BSON()
		}
		return a
	default:
		return v.scalar
	}
}

// BSON converts the map into an ordered BSON document.
func (m *Map) BSON() bson.D {
	d := make(bson.D, 0, len(m.entries))
	for _, e := range m.entries {
		d = append(d, bson.E{Key: e.Key, Value: e.Value.BSON()})
	}
	return d
}

func isNullScalar(v any) bool {
	switch v.(type) {
	case nil, bson.Null, bson.Undefined:
		return true
	}
	return false
}
