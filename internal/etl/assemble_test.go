package etl

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestAssemble_OrdersByDeclaration(t *testing.T) {
	table, err := BuildPathTable([]string{"b", "a"})
	require.NoError(t, err)
	row := NewAssembler(table, "").Assemble(Tuple{
		{Path: FieldPath{"a"}, Value: Scalar("A")},
		{Path: FieldPath{"b"}, Value: Scalar("B")},
		{Path: FieldPath{"zzz"}, Value: Scalar("ignored")},
	})
	assert.Equal(t, Row{"B", "A"}, row)
}

func TestAssemble_NullPlaceholder(t *testing.T) {
	table, err := BuildPathTable([]string{"a", "b", "c"})
	require.NoError(t, err)
	row := NewAssembler(table, `\N`).Assemble(Tuple{
		{Path: FieldPath{"a"}, Value: Scalar(nil)},
		{Path: FieldPath{"b"}, Missing: true},
	})
	assert.Equal(t, Row{`\N`, `\N`, `\N`}, row)
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "2014-05-01 12:34:10", FormatTime(time.Date(2014, 5, 1, 12, 34, 10, 0, time.UTC)))
	assert.Equal(t, "2014-05-01 12:00:10.345000",
		FormatTime(time.Date(2014, 5, 1, 12, 0, 10, 345*int(time.Millisecond), time.UTC)))

	// Rendered in UTC.
	cet := time.FixedZone("CET", 3600)
	assert.Equal(t, "2014-05-01 11:00:00", FormatTime(time.Date(2014, 5, 1, 12, 0, 0, 0, cet)))
}

func TestFormatFloat(t *testing.T) {
	cases := map[float64]string{
		0:            "0.0",
		100:          "100.0",
		0.5:          "0.5",
		-2.25:        "-2.25",
		0.1:          "0.1",
		1e16:         "1e+16",
		1e-5:         "1e-05",
		123456789.75: "123456789.75",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatFloat(in), "FormatFloat(%v)", in)
	}
	assert.Equal(t, "nan", FormatFloat(math.NaN()))
	assert.Equal(t, "inf", FormatFloat(math.Inf(1)))
	assert.Equal(t, "-inf", FormatFloat(math.Inf(-1)))
}

func TestFormatScalar(t *testing.T) {
	oid, err := bson.ObjectIDFromHex("5f1b2c3d4e5f60718293a4b5")
	require.NoError(t, err)

	assert.Equal(t, "NULL", FormatScalar(nil, "NULL"))
	assert.Equal(t, "NULL", FormatScalar(bson.Null{}, "NULL"))
	assert.Equal(t, "true", FormatScalar(true, ""))
	assert.Equal(t, "42", FormatScalar(int32(42), ""))
	assert.Equal(t, "-7", FormatScalar(int64(-7), ""))
	assert.Equal(t, "1.5", FormatScalar(1.5, ""))
	assert.Equal(t, "héllo ✓", FormatScalar("héllo ✓", ""))
	assert.Equal(t, "5f1b2c3d4e5f60718293a4b5", FormatScalar(oid, ""))
	assert.Equal(t, "2014-05-01 12:34:10",
		FormatScalar(bson.NewDateTimeFromTime(time.Date(2014, 5, 1, 12, 34, 10, 0, time.UTC)), ""))
	assert.Equal(t, "aGk=", FormatScalar(bson.Binary{Data: []byte("hi")}, ""))
	assert.Equal(t, "/^a/i", FormatScalar(bson.Regex{Pattern: "^a", Options: "i"}, ""))
}

func TestFormatValue_Containers(t *testing.T) {
	m := MapFromBSON(bson.D{{Key: "x", Value: 1}, {Key: "y", Value: bson.A{"a", nil}}})
	assert.Equal(t, `{"x":1,"y":["a",null]}`, FormatValue(MapValue(m), ""))
	assert.Equal(t, `[1,"two"]`, FormatValue(Sequence(Scalar(int64(1)), Scalar("two")), ""))
}
