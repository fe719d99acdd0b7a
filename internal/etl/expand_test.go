package etl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// flatten expands one document and assembles its rows with an empty null
// placeholder.
func flatten(t *testing.T, fields []string, d bson.D) []Row {
	t.Helper()
	table, err := BuildPathTable(fields)
	require.NoError(t, err)
	asm := NewAssembler(table, "")
	var rows []Row
	for _, tuple := range NewExpander(table).Expand(MapFromBSON(d)) {
		rows = append(rows, asm.Assemble(tuple))
	}
	return rows
}

func TestExpand_ScalarColumns(t *testing.T) {
	rows := flatten(t, []string{"f1", "f2"}, bson.D{{Key: "f1", Value: "foo1"}, {Key: "f2", Value: "one,two"}})
	assert.Equal(t, []Row{{"foo1", "one,two"}}, rows)
}

func TestExpand_AbsentField(t *testing.T) {
	rows := flatten(t, []string{"f1", "f2"}, bson.D{{Key: "f1", Value: "foo1"}})
	assert.Equal(t, []Row{{"foo1", ""}}, rows)
}

func TestExpand_SubRecord(t *testing.T) {
	rows := flatten(t, []string{"f1", "f2.sub"}, bson.D{
		{Key: "f1", Value: "foo1"},
		{Key: "f2", Value: bson.D{{Key: "sub", Value: "foo2"}}},
	})
	assert.Equal(t, []Row{{"foo1", "foo2"}}, rows)
}

func TestExpand_ScalarList(t *testing.T) {
	rows := flatten(t, []string{"f1", "f2"}, bson.D{
		{Key: "f1", Value: "foo1"},
		{Key: "f2", Value: bson.A{"one", "two"}},
	})
	assert.Equal(t, []Row{{"foo1", "one"}, {"foo1", "two"}}, rows)
}

func TestExpand_DocumentList(t *testing.T) {
	rows := flatten(t, []string{"f1", "f2.sub"}, bson.D{
		{Key: "f1", Value: "foo1"},
		{Key: "f2", Value: bson.A{
			bson.D{{Key: "sub", Value: "one"}},
			bson.D{{Key: "sub2", Value: "two"}},
		}},
	})
	assert.Equal(t, []Row{{"foo1", "one"}, {"foo1", ""}}, rows)
}

func TestExpand_NestedLists(t *testing.T) {
	rows := flatten(t, []string{"f1", "f2.sub.sub2"}, bson.D{
		{Key: "f1", Value: "foo1"},
		{Key: "f2", Value: bson.A{
			bson.D{{Key: "sub", Value: bson.A{
				bson.D{{Key: "sub2", Value: "one"}},
				bson.D{{Key: "sub2", Value: "two"}},
			}}},
			bson.D{{Key: "sub", Value: bson.A{
				bson.D{{Key: "sub2", Value: "three"}},
			}}},
		}},
	})
	assert.Equal(t, []Row{{"foo1", "one"}, {"foo1", "two"}, {"foo1", "three"}}, rows)
}

func TestExpand_Hotel(t *testing.T) {
	rows := flatten(t, []string{"hotel", "rooms.name", "hotel_id", "rooms.price"}, bson.D{
		{Key: "hotel", Value: "Hilton"},
		{Key: "rooms", Value: bson.A{
			bson.D{{Key: "name", Value: "Standard"}, {Key: "price", Value: 100}},
			bson.D{{Key: "name", Value: "Deluxe"}, {Key: "price", Value: 120}},
		}},
		{Key: "hotel_id", Value: 1000},
	})
	assert.Equal(t, []Row{
		{"Hilton", "Standard", "1000", "100"},
		{"Hilton", "Deluxe", "1000", "120"},
	}, rows)
}

func TestExpand_CartesianProduct(t *testing.T) {
	rows := flatten(t, []string{"a", "b"}, bson.D{
		{Key: "a", Value: bson.A{1, 2}},
		{Key: "b", Value: bson.A{"x", "y", "z"}},
	})
	require.Len(t, rows, 6)
	assert.Equal(t, []Row{
		{"1", "x"}, {"1", "y"}, {"1", "z"},
		{"2", "x"}, {"2", "y"}, {"2", "z"},
	}, rows)
}

func TestExpand_ProductFollowsRecordOrder(t *testing.T) {
	// b appears first in the record, so it varies slowest.
	rows := flatten(t, []string{"a", "b"}, bson.D{
		{Key: "b", Value: bson.A{"x", "y"}},
		{Key: "a", Value: bson.A{1, 2}},
	})
	assert.Equal(t, []Row{{"1", "x"}, {"2", "x"}, {"1", "y"}, {"2", "y"}}, rows)
}

func TestExpand_SiblingListsInsideElements(t *testing.T) {
	rows := flatten(t, []string{"id", "items.tags", "items.sizes"}, bson.D{
		{Key: "id", Value: 7},
		{Key: "items", Value: bson.A{
			bson.D{{Key: "tags", Value: bson.A{"t1", "t2"}}, {Key: "sizes", Value: bson.A{"S", "M"}}},
			bson.D{{Key: "tags", Value: "t3"}},
		}},
	})
	assert.Equal(t, []Row{
		{"7", "t1", "S"}, {"7", "t1", "M"}, {"7", "t2", "S"}, {"7", "t2", "M"},
		{"7", "t3", ""},
	}, rows)
}

func TestExpand_EmptyListYieldsNoRows(t *testing.T) {
	rows := flatten(t, []string{"f1", "f2"}, bson.D{
		{Key: "f1", Value: "foo1"},
		{Key: "f2", Value: bson.A{}},
	})
	assert.Empty(t, rows)
}

func TestExpand_AbsentContainerSurfacesNull(t *testing.T) {
	rows := flatten(t, []string{"a", "b.c", "b.d.e"}, bson.D{{Key: "a", Value: 1}})
	assert.Equal(t, []Row{{"1", "", ""}}, rows)
}

func TestExpand_ScalarWhereContainerExpected(t *testing.T) {
	rows := flatten(t, []string{"a", "b.c"}, bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 5}})
	assert.Equal(t, []Row{{"1", ""}}, rows)
}

func TestExpand_ScalarElementsOfDocumentList(t *testing.T) {
	rows := flatten(t, []string{"f2.sub"}, bson.D{
		{Key: "f2", Value: bson.A{bson.D{{Key: "sub", Value: "one"}}, "loose"}},
	})
	assert.Equal(t, []Row{{"one"}, {""}}, rows)
}

func TestExpand_UnrequestedBranchesAreIgnored(t *testing.T) {
	rows := flatten(t, []string{"a"}, bson.D{
		{Key: "a", Value: "x"},
		{Key: "skip", Value: bson.A{1, 2, 3}},
	})
	assert.Equal(t, []Row{{"x"}}, rows)
}

func TestExpand_NullValue(t *testing.T) {
	rows := flatten(t, []string{"f1", "f2"}, bson.D{{Key: "f1", Value: "foo1"}, {Key: "f2", Value: nil}})
	assert.Equal(t, []Row{{"foo1", ""}}, rows)
}

func TestExpand_DocumentAtLeaf(t *testing.T) {
	rows := flatten(t, []string{"f2"}, bson.D{{Key: "f2", Value: bson.D{{Key: "a", Value: 1}, {Key: "b", Value: "x"}}}})
	assert.Equal(t, []Row{{`{"a":1,"b":"x"}`}}, rows)
}

func TestExpand_DocumentAtLeafAndPrefix(t *testing.T) {
	rows := flatten(t, []string{"f2", "f2.a"}, bson.D{{Key: "f2", Value: bson.D{{Key: "a", Value: 1}}}})
	assert.Equal(t, []Row{{`{"a":1}`, "1"}}, rows)
}

func TestExpand_WholeRecord(t *testing.T) {
	rows := flatten(t, []string{"", "a"}, bson.D{{Key: "a", Value: bson.A{"x", "y"}}})
	assert.Equal(t, []Row{
		{`{"a":["x","y"]}`, "x"},
		{`{"a":["x","y"]}`, "y"},
	}, rows)
}

func TestExpand_EveryTupleCoversEveryPath(t *testing.T) {
	fields := []string{"a", "b.c", "b.d", "e.f.g"}
	table, err := BuildPathTable(fields)
	require.NoError(t, err)

	docs := []bson.D{
		{},
		{{Key: "a", Value: 1}},
		{{Key: "b", Value: bson.A{bson.D{{Key: "c", Value: 1}}, bson.D{{Key: "d", Value: 2}}}}},
		{{Key: "e", Value: bson.D{{Key: "f", Value: "scalar"}}}},
		{{Key: "e", Value: bson.D{{Key: "f", Value: bson.A{bson.D{{Key: "g", Value: 1}}, bson.D{{Key: "g", Value: 2}}}}}}},
	}
	for _, d := range docs {
		for _, tuple := range NewExpander(table).Expand(MapFromBSON(d)) {
			seen := map[string]int{}
			for _, fv := range tuple {
				seen[fv.Path.String()]++
			}
			for _, f := range fields {
				assert.Equal(t, 1, seen[f], "field %s in %v", f, d)
			}
		}
	}
}

func TestExpand_NoFields(t *testing.T) {
	rows := flatten(t, nil, bson.D{{Key: "a", Value: 1}})
	assert.Equal(t, []Row{{}}, rows)
}

func TestExpandAt_Subtree(t *testing.T) {
	table, err := BuildPathTable([]string{"rooms.name", "rooms.price"})
	require.NoError(t, err)
	room := MapFromBSON(bson.D{{Key: "name", Value: "Deluxe"}, {Key: "price", Value: 120}, {Key: "floor", Value: 3}})

	tuples := NewExpander(table).ExpandAt(room, FieldPath{"rooms"})
	require.Len(t, tuples, 1)
	assert.Equal(t, Row{"Deluxe", "120"}, NewAssembler(table, "").Assemble(tuples[0]))

	assert.Equal(t, []Tuple{{}}, NewExpander(table).ExpandAt(room, FieldPath{"other"}))
}
